package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/szaher/miniagi/internal/llm"
	"github.com/szaher/miniagi/internal/summarize"
	"github.com/szaher/miniagi/internal/tokens"
)

// RetrievalPrompt introduces the data handed to the model by process_data.
const RetrievalPrompt = "You will be asked to process data from a URL or file. " +
	"You do not need to access the URL or file yourself, it will be loaded on your behalf and included as 'INPUT DATA'."

// DataHint is the summarization hint for fetched data.
const DataHint = "Summarize the text using short sentences and abbreviations."

// SplitProcessArgument splits a process_data argument into its prompt and
// source. Exactly one '|' is required.
func SplitProcessArgument(argument string) (prompt, source string, err error) {
	parts := strings.Split(argument, "|")
	switch {
	case len(parts) == 1:
		return "", "", &FormatError{
			Reason:  ErrMissingSeparator,
			Message: "Invalid command. The correct format is: prompt|file or url",
		}
	case len(parts) > 2:
		return "", "", &FormatError{
			Reason:  ErrMultipleSources,
			Message: "Cannot process multiple input files or URLs. Process one at a time.",
		}
	}
	return parts[0], strings.TrimSpace(parts[1]), nil
}

// DataProcessor answers a prompt over a fetched source with a secondary
// model query.
type DataProcessor struct {
	Fetcher    Fetcher
	Summarizer summarize.Summarizer
	Estimator  tokens.Estimator
	Client     llm.Client
	Model      string
	// MaxInputTokens bounds the fetched data; larger data is summarized.
	MaxInputTokens int
	MaxTokens      int
}

// Handle implements Handler for process_data.
func (p *DataProcessor) Handle(ctx context.Context, argument string) (string, error) {
	prompt, source, err := SplitProcessArgument(argument)
	if err != nil {
		return "", err
	}

	data, err := p.Fetcher.Get(ctx, source)
	if err != nil {
		return "", err
	}

	est := p.Estimator
	if est == nil {
		est = tokens.Heuristic{}
	}
	if p.MaxInputTokens > 0 && est.Estimate(data) > p.MaxInputTokens {
		if p.Summarizer == nil {
			return "", fmt.Errorf("process_data: input exceeds %d tokens and no summarizer is configured", p.MaxInputTokens)
		}
		data, err = p.Summarizer.Summarize(ctx, data, p.MaxInputTokens, DataHint)
		if err != nil {
			return "", fmt.Errorf("process_data: summarize input: %w", err)
		}
	}

	query := fmt.Sprintf("%s\n%s\nINPUT DATA:\n%s", RetrievalPrompt, prompt, data)
	out, err := llm.Complete(ctx, p.Client, p.Model, query, p.MaxTokens)
	if err != nil {
		return "", fmt.Errorf("process_data: %w", err)
	}
	return out, nil
}

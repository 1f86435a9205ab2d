// Package summarize compresses text to a token budget with an LLM.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/szaher/miniagi/internal/llm"
	"github.com/szaher/miniagi/internal/tokens"
)

// DefaultChunkTokens is the chunk size used when Chunked.ChunkTokens is unset.
const DefaultChunkTokens = 3000

// maxPasses bounds the number of recursive summarization rounds.
const maxPasses = 4

// Summarizer compresses text so that its estimate fits maxTokens.
// The bound is best effort.
type Summarizer interface {
	Summarize(ctx context.Context, text string, maxTokens int, hint string) (string, error)
}

// Func adapts a function to the Summarizer interface.
type Func func(ctx context.Context, text string, maxTokens int, hint string) (string, error)

// Summarize calls f.
func (f Func) Summarize(ctx context.Context, text string, maxTokens int, hint string) (string, error) {
	return f(ctx, text, maxTokens, hint)
}

// Chunked summarizes text chunk by chunk and repeats on the joined result
// while it is still over budget.
type Chunked struct {
	Client      llm.Client
	Model       string
	Estimator   tokens.Estimator
	ChunkTokens int
	Logger      *slog.Logger
}

// Summarize implements Summarizer.
func (c *Chunked) Summarize(ctx context.Context, text string, maxTokens int, hint string) (string, error) {
	if c.Client == nil {
		return "", fmt.Errorf("summarize: no client configured")
	}
	if maxTokens <= 0 {
		return "", fmt.Errorf("summarize: invalid token limit %d", maxTokens)
	}
	est := c.estimator()
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	current := strings.TrimSpace(text)
	if current == "" {
		return "", nil
	}
	size := est.Estimate(current)

	for pass := 1; pass <= maxPasses; pass++ {
		chunks := Split(current, est, c.chunkTokens())
		parts := make([]string, 0, len(chunks))
		for i, chunk := range chunks {
			out, err := llm.Complete(ctx, c.Client, c.Model, prompt(chunk, maxTokens, hint), maxTokens)
			if err != nil {
				return "", fmt.Errorf("summarize: chunk %d/%d: %w", i+1, len(chunks), err)
			}
			parts = append(parts, out)
		}

		next := strings.Join(parts, "\n")
		nextSize := est.Estimate(next)
		logger.Debug("summarization pass",
			"pass", pass, "chunks", len(chunks), "input_tokens", size, "output_tokens", nextSize)

		if nextSize <= maxTokens || nextSize >= size {
			return next, nil
		}
		current, size = next, nextSize
	}
	return current, nil
}

func (c *Chunked) estimator() tokens.Estimator {
	if c.Estimator != nil {
		return c.Estimator
	}
	return tokens.Heuristic{}
}

func (c *Chunked) chunkTokens() int {
	if c.ChunkTokens > 0 {
		return c.ChunkTokens
	}
	return DefaultChunkTokens
}

func prompt(text string, maxTokens int, hint string) string {
	var b strings.Builder
	if hint != "" {
		b.WriteString(hint)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Summarize the following text in at most %d tokens. Reply with the summary only.\n\n", maxTokens)
	b.WriteString(text)
	return b.String()
}

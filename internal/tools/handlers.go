package tools

import (
	"context"
	"fmt"

	"github.com/szaher/miniagi/internal/llm"
	"github.com/szaher/miniagi/internal/summarize"
	"github.com/szaher/miniagi/internal/tokens"
)

// CodeRunner executes a program and returns its captured standard output.
type CodeRunner interface {
	Run(ctx context.Context, code string) (string, error)
}

// Deps are the collaborators of the built-in handlers. A nil runner or
// fetcher leaves the commands that need it unregistered.
type Deps struct {
	Code    CodeRunner
	Shell   ShellRunner
	Fetcher Fetcher

	Client            llm.Client
	Model             string
	MaxResponseTokens int

	Summarizer       summarize.Summarizer
	Estimator        tokens.Estimator
	MaxContextTokens int
}

// DefaultHandlers returns the built-in command handlers.
func DefaultHandlers(d Deps) map[string]Handler {
	handlers := map[string]Handler{
		CmdMemorizeThoughts: HandlerFunc(memorizeThoughts),
	}
	if d.Code != nil {
		handlers[CmdExecutePython] = HandlerFunc(func(ctx context.Context, code string) (string, error) {
			return d.Code.Run(ctx, code)
		})
	}
	if d.Shell != nil {
		handlers[CmdExecuteShell] = HandlerFunc(func(ctx context.Context, command string) (string, error) {
			stdout, stderr, err := d.Shell.Run(ctx, command)
			if err != nil {
				if stderr != "" {
					return "", fmt.Errorf("%w\n%s", err, stderr)
				}
				return "", err
			}
			return FormatShellOutput(stdout, stderr), nil
		})
	}
	if d.Fetcher != nil {
		handlers[CmdIngestData] = HandlerFunc(func(ctx context.Context, source string) (string, error) {
			return d.Fetcher.Get(ctx, source)
		})
		if d.Client != nil {
			handlers[CmdProcessData] = &DataProcessor{
				Fetcher:        d.Fetcher,
				Summarizer:     d.Summarizer,
				Estimator:      d.Estimator,
				Client:         d.Client,
				Model:          d.Model,
				MaxInputTokens: d.MaxContextTokens,
				MaxTokens:      d.MaxResponseTokens,
			}
		}
	}
	return handlers
}

func memorizeThoughts(_ context.Context, thoughts string) (string, error) {
	return thoughts, nil
}

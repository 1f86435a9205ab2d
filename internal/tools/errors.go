package tools

import (
	"errors"
	"fmt"
)

// Sentinel errors for process_data argument validation.
var (
	ErrMissingSeparator = errors.New("missing prompt|source separator")
	ErrMultipleSources  = errors.New("multiple sources")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrControlCommand   = errors.New("control command is handled by the agent loop")
)

// ToolExecutionError wraps any failure raised by a handler.
type ToolExecutionError struct {
	Command string
	Err     error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("command %s: %v", e.Command, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// FetchError reports a network or filesystem failure while loading a source.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FormatError reports a malformed command argument. Message is shown to the
// model verbatim.
type FormatError struct {
	Reason  error
	Message string
}

func (e *FormatError) Error() string { return e.Message }

func (e *FormatError) Unwrap() error { return e.Reason }

// observationFor renders a handler failure as observation text.
func observationFor(err error) string {
	var formatErr *FormatError
	if errors.As(err, &formatErr) {
		return formatErr.Message
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return "Error: " + fetchErr.Err.Error()
	}
	var toolErr *ToolExecutionError
	if errors.As(err, &toolErr) {
		err = toolErr.Err
	}
	return "Command returned an error:\n" + err.Error()
}

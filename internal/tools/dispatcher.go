// Package tools routes parsed agent commands to their handlers.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Command names understood by the agent.
const (
	CmdMemorizeThoughts = "memorize_thoughts"
	CmdExecutePython    = "execute_python"
	CmdExecuteShell     = "execute_shell"
	CmdIngestData       = "ingest_data"
	CmdProcessData      = "process_data"
	CmdTalkToUser       = "talk_to_user"
	CmdDone             = "done"
)

// IsControl reports whether command is handled by the loop rather than a handler.
func IsControl(command string) bool {
	return command == CmdTalkToUser || command == CmdDone
}

// Handler executes one command and returns its observation.
type Handler interface {
	Handle(ctx context.Context, argument string) (string, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, argument string) (string, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, argument string) (string, error) {
	return f(ctx, argument)
}

// Status classifies a dispatch outcome.
type Status string

const (
	StatusOK      Status = "ok"
	StatusError   Status = "error"
	StatusUnknown Status = "unknown"
)

// Result is the outcome of one dispatch. Observation is always set.
type Result struct {
	Command     string
	Observation string
	Status      Status
	Err         error
	Duration    time.Duration
}

// Dispatcher owns the mapping from command name to handler.
// The mapping is fixed at construction.
type Dispatcher struct {
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over a copy of handlers.
func NewDispatcher(handlers map[string]Handler, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	m := make(map[string]Handler, len(handlers))
	for name, h := range handlers {
		if h != nil {
			m[name] = h
		}
	}
	return &Dispatcher{handlers: m, logger: logger}
}

// Commands returns the registered command names, sorted.
func (d *Dispatcher) Commands() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the handler for command. It never returns an error and never
// panics: every failure becomes observation text.
func (d *Dispatcher) Dispatch(ctx context.Context, command, argument string) (res Result) {
	start := time.Now()
	res.Command = command
	defer func() {
		res.Duration = time.Since(start)
		d.logger.Info("command dispatched",
			"command", command, "status", res.Status, "duration_ms", res.Duration.Milliseconds())
	}()

	if IsControl(command) {
		res.Status = StatusError
		res.Err = fmt.Errorf("%w: %s", ErrControlCommand, command)
		res.Observation = "Command returned an error:\n" + res.Err.Error()
		return res
	}

	h, ok := d.handlers[command]
	if !ok {
		res.Status = StatusUnknown
		res.Err = fmt.Errorf("%w: %s", ErrUnknownCommand, command)
		res.Observation = "Unknown command: " + command
		return res
	}

	out, err := d.invoke(ctx, h, argument)
	if err != nil {
		res.Observation = observationFor(err)
		var toolErr *ToolExecutionError
		if !errors.As(err, &toolErr) {
			err = &ToolExecutionError{Command: command, Err: err}
		}
		res.Status = StatusError
		res.Err = err
		d.logger.Warn("command failed", "command", command, "error", err)
		return res
	}

	res.Status = StatusOK
	res.Observation = out
	return res
}

func (d *Dispatcher) invoke(ctx context.Context, h Handler, argument string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, argument)
}

package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

const waitDelay = 500 * time.Millisecond

// ShellRunner runs one non-interactive shell command.
type ShellRunner interface {
	Run(ctx context.Context, command string) (stdout, stderr string, err error)
}

// Shell runs commands with `sh -c` in Dir. A non-zero exit status is not an
// error: its output is returned like any other. Errors are reserved for
// commands that could not start or were killed by the timeout.
type Shell struct {
	Dir     string
	Timeout time.Duration
	// Env replaces the inherited environment when non-nil.
	Env []string
}

// Run implements ShellRunner.
func (s *Shell) Run(ctx context.Context, command string) (string, string, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = s.Dir
	// Children of sh may outlive it and hold the output pipes open.
	cmd.WaitDelay = waitDelay
	if s.Env != nil {
		cmd.Env = s.Env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return stdout.String(), stderr.String(), fmt.Errorf("shell: timed out after %s", s.Timeout)
	case ctx.Err() != nil:
		return stdout.String(), stderr.String(), fmt.Errorf("shell: %w", ctx.Err())
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return stdout.String(), stderr.String(), fmt.Errorf("shell: %w", err)
	}
	return stdout.String(), stderr.String(), nil
}

// FormatShellOutput renders captured output as an observation.
func FormatShellOutput(stdout, stderr string) string {
	return fmt.Sprintf("STDOUT:\n%s\nSTDERR:\n%s", stdout, stderr)
}

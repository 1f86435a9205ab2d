package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDispatch(t *testing.T) {
	d := NewDispatcher(map[string]Handler{
		"echo": HandlerFunc(func(_ context.Context, arg string) (string, error) {
			return "echo: " + arg, nil
		}),
		"fail": HandlerFunc(func(context.Context, string) (string, error) {
			return "", errors.New("exit status 2")
		}),
		"panic": HandlerFunc(func(context.Context, string) (string, error) {
			panic("nil map write")
		}),
		"format": HandlerFunc(func(_ context.Context, arg string) (string, error) {
			_, _, err := SplitProcessArgument(arg)
			return "", err
		}),
		"fetch": HandlerFunc(func(context.Context, string) (string, error) {
			return "", &FetchError{Source: "x.txt", Err: errors.New("open x.txt: no such file or directory")}
		}),
	}, nil)

	tests := []struct {
		name        string
		command     string
		argument    string
		wantStatus  Status
		wantObs     string
		wantErrType bool
	}{
		{"success", "echo", "hi", StatusOK, "echo: hi", false},
		{"handler error", "fail", "", StatusError, "Command returned an error:\nexit status 2", true},
		{"handler panic", "panic", "", StatusError, "Command returned an error:\nhandler panic: nil map write", true},
		{"format error", "format", "a|b|c", StatusError, "Cannot process multiple input files or URLs. Process one at a time.", true},
		{"fetch error", "fetch", "x.txt", StatusError, "Error: open x.txt: no such file or directory", true},
		{"unknown", "web_search", "cookies", StatusUnknown, "Unknown command: web_search", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := d.Dispatch(context.Background(), tc.command, tc.argument)
			if res.Status != tc.wantStatus {
				t.Errorf("Status = %q, want %q", res.Status, tc.wantStatus)
			}
			if res.Observation != tc.wantObs {
				t.Errorf("Observation = %q, want %q", res.Observation, tc.wantObs)
			}
			var toolErr *ToolExecutionError
			if got := errors.As(res.Err, &toolErr); got != tc.wantErrType {
				t.Errorf("ToolExecutionError = %v, want %v (err: %v)", got, tc.wantErrType, res.Err)
			}
			if tc.wantErrType && toolErr.Command != tc.command {
				t.Errorf("ToolExecutionError.Command = %q, want %q", toolErr.Command, tc.command)
			}
		})
	}
}

func TestDispatch_UnknownAndControl(t *testing.T) {
	d := NewDispatcher(nil, nil)

	res := d.Dispatch(context.Background(), "nope", "")
	if !errors.Is(res.Err, ErrUnknownCommand) {
		t.Errorf("expected ErrUnknownCommand, got %v", res.Err)
	}

	for _, cmd := range []string{CmdTalkToUser, CmdDone} {
		res := d.Dispatch(context.Background(), cmd, "")
		if !errors.Is(res.Err, ErrControlCommand) {
			t.Errorf("Dispatch(%q): expected ErrControlCommand, got %v", cmd, res.Err)
		}
	}
}

func TestDispatcher_MappingIsCopied(t *testing.T) {
	handlers := map[string]Handler{"a": HandlerFunc(memorizeThoughts), "skip": nil}
	d := NewDispatcher(handlers, nil)
	handlers["b"] = HandlerFunc(memorizeThoughts)

	if diff := cmp.Diff([]string{"a"}, d.Commands()); diff != "" {
		t.Errorf("Commands mismatch (-want +got):\n%s", diff)
	}
}

type fakeShell struct {
	stdout, stderr string
	err            error
	got            string
}

func (f *fakeShell) Run(_ context.Context, command string) (string, string, error) {
	f.got = command
	return f.stdout, f.stderr, f.err
}

type fakeCode struct {
	out string
	err error
}

func (f *fakeCode) Run(context.Context, string) (string, error) { return f.out, f.err }

func TestDefaultHandlers(t *testing.T) {
	shell := &fakeShell{stdout: "a.txt\n", stderr: "warn\n"}
	d := NewDispatcher(DefaultHandlers(Deps{
		Shell: shell,
		Code:  &fakeCode{err: errors.New("NameError: name 'x' is not defined")},
	}), nil)
	ctx := context.Background()

	if res := d.Dispatch(ctx, CmdMemorizeThoughts, "first, plan\nthen act"); res.Observation != "first, plan\nthen act" {
		t.Errorf("memorize_thoughts observation = %q", res.Observation)
	}

	res := d.Dispatch(ctx, CmdExecuteShell, "ls")
	if res.Observation != "STDOUT:\na.txt\n\nSTDERR:\nwarn\n" || shell.got != "ls" {
		t.Errorf("execute_shell observation = %q (command %q)", res.Observation, shell.got)
	}

	res = d.Dispatch(ctx, CmdExecutePython, "print(x)")
	if res.Status != StatusError || !strings.Contains(res.Observation, "NameError") {
		t.Errorf("execute_python observation = %q", res.Observation)
	}

	if diff := cmp.Diff([]string{CmdExecutePython, CmdExecuteShell, CmdMemorizeThoughts}, d.Commands()); diff != "" {
		t.Errorf("registered commands mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultHandlers_ShellStartFailure(t *testing.T) {
	d := NewDispatcher(DefaultHandlers(Deps{
		Shell: &fakeShell{stderr: "partial", err: errors.New("shell: timed out after 1s")},
	}), nil)

	res := d.Dispatch(context.Background(), CmdExecuteShell, "sleep 5")
	want := "Command returned an error:\nshell: timed out after 1s\npartial"
	if res.Observation != want {
		t.Errorf("Observation = %q, want %q", res.Observation, want)
	}
}

package sandbox

import (
	"context"
	"fmt"
	"strings"
)

// Runner executes agent-written code of one language in a Sandbox.
// It satisfies the code runner used by the execute_python command.
type Runner struct {
	Sandbox    Sandbox
	Language   string
	WorkDir    string
	TimeoutSec int
	MemoryMB   int
	Env        map[string]string
}

// NewPythonRunner returns a Runner for python code.
func NewPythonRunner(sb Sandbox, workDir string, timeoutSec, memoryMB int) *Runner {
	return &Runner{
		Sandbox:    sb,
		Language:   "python",
		WorkDir:    workDir,
		TimeoutSec: timeoutSec,
		MemoryMB:   memoryMB,
	}
}

// Run executes code and returns its standard output. On failure the error
// carries the captured standard error.
func (r *Runner) Run(ctx context.Context, code string) (string, error) {
	if r.Sandbox == nil || !r.Sandbox.Available() {
		return "", fmt.Errorf("sandbox: no available backend for %s", r.Language)
	}
	stdout, stderr, err := r.Sandbox.Execute(ctx, ExecConfig{
		Language:   r.Language,
		Script:     code,
		Env:        r.Env,
		MemoryMB:   r.MemoryMB,
		TimeoutSec: r.TimeoutSec,
		WorkDir:    r.WorkDir,
	})
	if err != nil {
		if msg := strings.TrimSpace(stderr); msg != "" {
			return "", fmt.Errorf("%w\n%s", err, msg)
		}
		return "", err
	}
	return stdout, nil
}

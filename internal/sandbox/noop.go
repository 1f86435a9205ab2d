package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// NoopSandbox runs scripts directly under the agent's own environment.
// It applies the timeout and nothing else.
type NoopSandbox struct{}

// Available always returns true.
func (*NoopSandbox) Available() bool { return true }

// Execute implements Sandbox.
func (*NoopSandbox) Execute(ctx context.Context, config ExecConfig) (string, string, error) {
	interpreter, ext, err := interpreterForLanguage(config.Language)
	if err != nil {
		return "", "", err
	}
	st, err := stage("miniagi-noop-*", ext, config.Script)
	if err != nil {
		return "", "", err
	}
	defer st.cleanup()

	if config.TimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(config.TimeoutSec)*time.Second)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, interpreter, st.script)
	cmd.Dir = workDirOr(config.WorkDir, st.dir)
	cmd.Env = append(os.Environ(), envList(config.Env)...)
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	cmd.WaitDelay = waitDelay

	err = cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		err = &ErrResourceLimit{Resource: "time", Limit: fmt.Sprintf("%ds", config.TimeoutSec)}
	}
	return stdout.String(), stderr.String(), err
}

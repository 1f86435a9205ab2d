package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"time"
)

const (
	defaultTimeoutSec = 30
	fileSizeLimitKB   = 16384
	maxProcesses      = 64
	exitKilled        = 137
)

// ProcessSandbox isolates scripts with ulimit, a timeout and a minimal
// environment. HOME and TMPDIR point into a throwaway directory.
type ProcessSandbox struct{}

// Available reports whether bash and ulimit can be relied on.
func (p *ProcessSandbox) Available() bool {
	return runtime.GOOS == "linux" || runtime.GOOS == "darwin"
}

// Execute implements Sandbox.
func (p *ProcessSandbox) Execute(ctx context.Context, config ExecConfig) (string, string, error) {
	if !p.Available() {
		return "", "", fmt.Errorf("process sandbox not available on %s", runtime.GOOS)
	}
	interpreter, ext, err := interpreterForLanguage(config.Language)
	if err != nil {
		return "", "", err
	}
	if _, err := exec.LookPath(interpreter); err != nil {
		return "", "", fmt.Errorf("interpreter not found: %s", interpreter)
	}

	st, err := stage("miniagi-sandbox-*", ext, config.Script)
	if err != nil {
		return "", "", err
	}
	defer st.cleanup()
	scratch := st.dir

	workDir := workDirOr(config.WorkDir, scratch)
	wrapperPath := filepath.Join(scratch, "wrapper.sh")
	if err := os.WriteFile(wrapperPath, []byte(wrapper(interpreter, st.script, workDir, config.MemoryMB)), 0700); err != nil {
		return "", "", fmt.Errorf("write wrapper: %w", err)
	}

	timeoutSec := config.TimeoutSec
	if timeoutSec <= 0 {
		timeoutSec = defaultTimeoutSec
	}
	execCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "bash", wrapperPath)
	cmd.Dir = workDir
	cmd.Env = minimalEnv(scratch, config.Env)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	switch {
	case err == nil:
	case execCtx.Err() == context.DeadlineExceeded:
		err = &ErrResourceLimit{Resource: "time", Limit: fmt.Sprintf("%ds", timeoutSec)}
	case isKilled(err) && config.MemoryMB > 0:
		err = &ErrResourceLimit{Resource: "memory", Limit: fmt.Sprintf("%dMB", config.MemoryMB)}
	}
	return stdout.String(), stderr.String(), err
}

func minimalEnv(scratch string, extra map[string]string) []string {
	env := []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"HOME=" + scratch,
		"TMPDIR=" + scratch,
	}
	return append(env, envList(extra)...)
}

func isKilled(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr) && exitErr.ExitCode() == exitKilled
}

// wrapper returns a bash script that applies the limits and execs the
// interpreter.
func wrapper(interpreter, scriptPath, workDir string, memoryMB int) string {
	var b bytes.Buffer
	b.WriteString("#!/bin/bash\nset -e\n")
	if memoryMB > 0 {
		fmt.Fprintf(&b, "ulimit -v %d 2>/dev/null || true\n", memoryMB*1024)
	}
	fmt.Fprintf(&b, "ulimit -f %d 2>/dev/null || true\n", fileSizeLimitKB)
	fmt.Fprintf(&b, "ulimit -u %d 2>/dev/null || true\n", maxProcesses)
	fmt.Fprintf(&b, "cd %s\n", strconv.Quote(workDir))
	fmt.Fprintf(&b, "exec %s %s\n", interpreter, strconv.Quote(scriptPath))
	return b.String()
}

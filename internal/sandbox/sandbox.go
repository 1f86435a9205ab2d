// Package sandbox runs agent-generated programs in an isolated subprocess.
package sandbox

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// waitDelay bounds how long output pipes held by orphaned children are
// drained after the script exits or is killed.
const waitDelay = time.Second

// Sandbox executes a script with resource and filesystem limits.
type Sandbox interface {
	// Execute runs a script and returns its stdout, stderr and any error,
	// including resource limit violations.
	Execute(ctx context.Context, config ExecConfig) (stdout, stderr string, err error)

	// Available reports whether this backend can run on the current platform.
	Available() bool
}

// ExecConfig holds the execution parameters for one script.
type ExecConfig struct {
	Language   string            // "python", "node", "bash", "ruby"
	Script     string            // script content
	Env        map[string]string // extra environment variables
	MemoryMB   int               // memory limit in MB, 0 for none
	TimeoutSec int               // execution timeout in seconds
	WorkDir    string            // directory the script runs in; a temp dir when empty
}

// Backend names accepted by New.
const (
	BackendProcess = "process"
	BackendNone    = "none"
)

// New returns the sandbox for backend.
func New(backend string) (Sandbox, error) {
	switch backend {
	case "", BackendProcess:
		return &ProcessSandbox{}, nil
	case BackendNone:
		return &NoopSandbox{}, nil
	default:
		return nil, fmt.Errorf("sandbox: unknown backend %q", backend)
	}
}

// ErrResourceLimit indicates a resource limit was exceeded.
type ErrResourceLimit struct {
	Resource string // "memory" or "time"
	Limit    string // configured limit value
}

func (e *ErrResourceLimit) Error() string {
	return fmt.Sprintf("resource limit exceeded: %s (limit: %s)", e.Resource, e.Limit)
}

func interpreterForLanguage(lang string) (interpreter, ext string, err error) {
	switch lang {
	case "python", "python3":
		return "python3", ".py", nil
	case "javascript", "node":
		return "node", ".js", nil
	case "bash", "sh":
		return "bash", ".sh", nil
	case "ruby":
		return "ruby", ".rb", nil
	default:
		return "", "", fmt.Errorf("unsupported language %q", lang)
	}
}

// staged is a script written into its own scratch directory.
type staged struct {
	dir    string
	script string
}

func (s staged) cleanup() { _ = os.RemoveAll(s.dir) }

func stage(pattern, ext, script string) (staged, error) {
	dir, err := os.MkdirTemp("", pattern)
	if err != nil {
		return staged{}, fmt.Errorf("create scratch dir: %w", err)
	}
	st := staged{dir: dir, script: filepath.Join(dir, "script"+ext)}
	if err := os.WriteFile(st.script, []byte(script), 0o600); err != nil {
		st.cleanup()
		return staged{}, fmt.Errorf("write script: %w", err)
	}
	return st, nil
}

// envList renders extra as sorted KEY=value pairs.
func envList(extra map[string]string) []string {
	out := make([]string, 0, len(extra))
	for _, k := range slices.Sorted(maps.Keys(extra)) {
		out = append(out, k+"="+extra[k])
	}
	return out
}

func workDirOr(dir, fallback string) string {
	if dir != "" {
		return dir
	}
	return fallback
}

package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/szaher/miniagi/internal/testutil"
)

func TestShell_Run(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "marker.txt"), nil, 0o600); err != nil {
		t.Fatal(err)
	}
	s := &Shell{Dir: dir, Timeout: 10 * time.Second}

	stdout, stderr, err := s.Run(context.Background(), "ls; echo oops >&2")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stdout != "marker.txt\n" || stderr != "oops\n" {
		t.Errorf("got stdout=%q stderr=%q", stdout, stderr)
	}
}

func TestShell_NonZeroExitIsNotAnError(t *testing.T) {
	s := &Shell{}
	stdout, stderr, err := s.Run(context.Background(), "echo partial; ls /definitely/not/here; exit 3")
	if err != nil {
		t.Fatalf("expected non-zero exit to be reported as output, got %v", err)
	}
	if stdout != "partial\n" || stderr == "" {
		t.Errorf("got stdout=%q stderr=%q", stdout, stderr)
	}
}

func TestShell_Timeout(t *testing.T) {
	s := &Shell{Timeout: 100 * time.Millisecond}
	_, _, err := s.Run(context.Background(), "sleep 5")
	testutil.AssertErrorContains(t, err, "timed out")
}

func TestShell_Env(t *testing.T) {
	t.Setenv("MINIAGI_SHELL_SECRET", "leak")
	s := &Shell{Env: SafeEnv(map[string]string{"GREETING": "hi"})}

	stdout, _, err := s.Run(context.Background(), `printf "%s|%s" "$GREETING" "$MINIAGI_SHELL_SECRET"`)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stdout != "hi|" {
		t.Errorf("stdout = %q, want %q", stdout, "hi|")
	}
}

func TestShell_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	s := &Shell{Timeout: 10 * time.Second}
	_, _, err := s.Run(ctx, "sleep 5")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

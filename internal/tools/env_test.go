package tools

import (
	"strings"
	"testing"
)

func TestSafeEnv(t *testing.T) {
	t.Setenv("MINIAGI_TEST_LEAK_CHECK", "should_not_appear")
	t.Setenv("HOME", "/home/agent")

	env := SafeEnv(map[string]string{"WORK_DIR": "/work", "LANG": "C"})

	if !strings.HasPrefix(env[0], "PATH=") {
		t.Errorf("expected PATH first, got %q", env[0])
	}
	if env[1] != "HOME=/home/agent" {
		t.Errorf("expected HOME second, got %q", env[1])
	}
	if env[2] != "LANG=C" || env[3] != "WORK_DIR=/work" {
		t.Errorf("expected extra variables sorted by key, got %v", env[2:])
	}
	for _, entry := range env {
		if strings.HasPrefix(entry, "MINIAGI_TEST_LEAK_CHECK=") {
			t.Fatalf("safe env leaked host variable: %q", entry)
		}
	}
}

func TestSafeEnv_NoExtra(t *testing.T) {
	t.Setenv("HOME", "/home/agent")
	if env := SafeEnv(nil); len(env) != 2 {
		t.Fatalf("expected only PATH and HOME, got %v", env)
	}
}

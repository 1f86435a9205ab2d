package expr

import (
	"testing"

	"github.com/szaher/miniagi/internal/testutil"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantErr string
	}{
		{"cycle cap", "cycles >= 50", ""},
		{"combined", `tokens_used > 1000 || last_command == "execute_shell" && records > 3`, ""},
		{"empty", "", "empty expression"},
		{"syntax", "cycles >=", "compile error"},
		{"unknown variable", "iterations > 3", "compile error"},
		{"not boolean", "cycles + 1", "compile error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g, err := Compile(tc.source)
			if tc.wantErr != "" {
				testutil.AssertErrorContains(t, err, tc.wantErr)
				return
			}
			if err != nil {
				t.Fatalf("Compile(%q): %v", tc.source, err)
			}
			if g.Source != tc.source {
				t.Errorf("Source = %q, want %q", g.Source, tc.source)
			}
		})
	}
}

func TestGuard_Tripped(t *testing.T) {
	g, err := Compile(`cycles >= 3 || parse_failures > 2 || last_command == "done"`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	tests := []struct {
		name string
		env  Env
		want bool
	}{
		{"below limits", Env{Cycles: 2, ParseFailures: 1, LastCommand: "execute_shell"}, false},
		{"cycle limit", Env{Cycles: 3}, true},
		{"parse failures", Env{ParseFailures: 3}, true},
		{"last command", Env{LastCommand: "done"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := g.Tripped(tc.env)
			if err != nil {
				t.Fatalf("Tripped: %v", err)
			}
			if got != tc.want {
				t.Errorf("Tripped(%+v) = %v, want %v", tc.env, got, tc.want)
			}
		})
	}
}

func TestGuard_NilNeverTrips(t *testing.T) {
	var g *Guard
	tripped, err := g.Tripped(Env{Cycles: 1 << 30})
	if tripped || err != nil {
		t.Errorf("nil guard: got (%v, %v)", tripped, err)
	}
}

package grammar

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     Action
	}{
		{
			name:     "shell command",
			response: "<r>check files</r><c>execute_shell</c>\nls -la",
			want:     Action{Reasoning: "check files", Command: "execute_shell", Argument: "ls -la"},
		},
		{
			name:     "no newline before argument",
			response: "<r>r</r><c>ingest_data</c>notes.txt",
			want:     Action{Reasoning: "r", Command: "ingest_data", Argument: "notes.txt"},
		},
		{
			name:     "multiline argument keeps inner newlines",
			response: "<r>write code</r><c>execute_python</c>\n\n\nx = 1\n\nprint(x)",
			want:     Action{Reasoning: "write code", Command: "execute_python", Argument: "x = 1\n\nprint(x)"},
		},
		{
			name:     "fences stripped",
			response: "<r>run</r><c>execute_python</c>\n```python\nprint(1)\n```",
			want:     Action{Reasoning: "run", Command: "execute_python", Argument: "python\nprint(1)\n"},
		},
		{
			name:     "empty argument",
			response: "<r>finished</r><c>done</c>\n",
			want:     Action{Reasoning: "finished", Command: "done"},
		},
		{
			name:     "surrounding whitespace trimmed",
			response: "\n  <r>hi</r><c> talk_to_user </c>\nHello?  \n",
			want:     Action{Reasoning: "hi", Command: "talk_to_user", Argument: "Hello?"},
		},
		{
			name:     "non-greedy tags",
			response: "<r>a</r><c>memorize_thoughts</c>\nsee </r> and </c> later",
			want:     Action{Reasoning: "a", Command: "memorize_thoughts", Argument: "see </r> and </c> later"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.response)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Parse mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"missing closing reasoning tag", "<r>oops<c>done</c>\n"},
		{"missing closing command tag", "<r>ok</r><c>done\n"},
		{"wrong order", "<c>done</c><r>why</r>"},
		{"text before tags", "Sure! <r>ok</r><c>done</c>"},
		{"gap between tags", "<r>ok</r>\n<c>done</c>"},
		{"empty reasoning", "<r>  </r><c>done</c>"},
		{"empty command", "<r>ok</r><c></c>\nls"},
		{"empty response", ""},
		{"plain prose", "I think we should list the files."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.response)
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("expected ErrMalformedResponse, got %v", err)
			}
			var syntaxErr *SyntaxError
			if !errors.As(err, &syntaxErr) {
				t.Fatalf("expected *SyntaxError, got %T", err)
			}
			if got != (Action{}) {
				t.Errorf("expected no partial result, got %+v", got)
			}
		})
	}
}

// Package grammar parses the agent's two-tag response format:
//
//	<r>reasoning</r><c>command</c>
//	argument...
package grammar

import (
	"errors"
	"fmt"
	"strings"
)

const (
	openReasoning  = "<r>"
	closeReasoning = "</r>"
	openCommand    = "<c>"
	closeCommand   = "</c>"
	fence          = "```"
)

// ErrMalformedResponse is wrapped by every parse failure.
var ErrMalformedResponse = errors.New("malformed response")

// SyntaxError reports where a response stopped matching the grammar.
type SyntaxError struct {
	Offset int
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at offset %d: %s", ErrMalformedResponse, e.Offset, e.Reason)
}

// Unwrap returns ErrMalformedResponse.
func (e *SyntaxError) Unwrap() error { return ErrMalformedResponse }

// Action is the parsed (reasoning, command, argument) triple.
type Action struct {
	Reasoning string
	Command   string
	Argument  string
}

// Parse extracts an Action from a raw model response. The whole trimmed
// response must match; there are no partial results.
func Parse(response string) (Action, error) {
	s := scanner{text: strings.TrimSpace(response)}

	if err := s.expect(openReasoning); err != nil {
		return Action{}, err
	}
	reasoning, err := s.until(closeReasoning, "reasoning")
	if err != nil {
		return Action{}, err
	}
	if err := s.expect(openCommand); err != nil {
		return Action{}, err
	}
	command, err := s.until(closeCommand, "command")
	if err != nil {
		return Action{}, err
	}

	if strings.TrimSpace(reasoning) == "" {
		return Action{}, &SyntaxError{Offset: len(openReasoning), Reason: "empty reasoning"}
	}
	command = strings.TrimSpace(command)
	if command == "" {
		return Action{}, &SyntaxError{Offset: s.pos, Reason: "empty command"}
	}

	rest := strings.TrimLeft(s.text[s.pos:], "\n")
	return Action{
		Reasoning: reasoning,
		Command:   command,
		Argument:  strings.ReplaceAll(rest, fence, ""),
	}, nil
}

type scanner struct {
	text string
	pos  int
}

// expect consumes tag at the current position.
func (s *scanner) expect(tag string) error {
	if !strings.HasPrefix(s.text[s.pos:], tag) {
		return &SyntaxError{Offset: s.pos, Reason: fmt.Sprintf("expected %q", tag)}
	}
	s.pos += len(tag)
	return nil
}

// until returns the text up to the first occurrence of closing and consumes
// both.
func (s *scanner) until(closing, what string) (string, error) {
	rest := s.text[s.pos:]
	end := strings.Index(rest, closing)
	if end < 0 {
		return "", &SyntaxError{Offset: s.pos, Reason: fmt.Sprintf("unterminated %s, missing %q", what, closing)}
	}
	s.pos += end + len(closing)
	return rest[:end], nil
}

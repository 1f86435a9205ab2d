// Package llm defines the language model client abstraction used by the agent
// loop and the summarizer.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Role is who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// StopReason is the provider-neutral reason generation ended.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopMaxTokens    StopReason = "max_tokens"
	StopStopSequence StopReason = "stop_sequence"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TokenUsage is what one call cost, as reported by the provider.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// ChatRequest is a provider-neutral completion request. A nil Temperature
// leaves the provider default in place.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
}

// ChatResponse is the text a model produced for a ChatRequest.
type ChatResponse struct {
	Content    string     `json:"content"`
	StopReason StopReason `json:"stop_reason"`
	Usage      TokenUsage `json:"usage"`
}

// Client talks to one model provider. Chat blocks until the model answers
// or ctx is done.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Complete sends prompt as a single user message and returns the text reply.
func Complete(ctx context.Context, client Client, model, prompt string, maxTokens int) (string, error) {
	resp, err := client.Chat(ctx, ChatRequest{
		Model:     model,
		Messages:  []Message{{Role: RoleUser, Content: prompt}},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", fmt.Errorf("llm: empty response from %s", model)
	}
	return strings.TrimSpace(resp.Content), nil
}

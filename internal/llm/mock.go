package llm

import (
	"context"
	"errors"
	"sync"
)

// MockResponse is one scripted reply. A non-nil Error is returned instead of
// a response.
type MockResponse struct {
	Content    string
	StopReason StopReason
	Usage      TokenUsage
	Error      error
}

// MockClient replays scripted responses and records every request.
// Once the script is exhausted the last response repeats.
type MockClient struct {
	mu     sync.Mutex
	script []MockResponse
	next   int
	calls  []ChatRequest
}

// NewMockClient creates a mock that answers with responses in order.
func NewMockClient(responses ...MockResponse) *MockClient {
	return &MockClient{script: responses}
}

// Chat implements Client. A done ctx fails the call without consuming a
// scripted response.
func (m *MockClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(m.script) == 0 {
		return nil, errors.New("mock: no responses configured")
	}

	r := m.script[min(m.next, len(m.script)-1)]
	if m.next < len(m.script) {
		m.next++
	}
	if r.Error != nil {
		return nil, r.Error
	}
	if r.StopReason == "" {
		r.StopReason = StopEndTurn
	}
	return &ChatResponse{Content: r.Content, StopReason: r.StopReason, Usage: r.Usage}, nil
}

// Calls returns a copy of every request received.
func (m *MockClient) Calls() []ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ChatRequest(nil), m.calls...)
}

// Prompts returns the last message of every request, in call order.
func (m *MockClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.calls))
	for _, c := range m.calls {
		if len(c.Messages) > 0 {
			out = append(out, c.Messages[len(c.Messages)-1].Content)
		}
	}
	return out
}

// Reset rewinds the script and forgets recorded calls.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next = 0
	m.calls = nil
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrBudgetExceeded is returned once the session token budget is spent.
var ErrBudgetExceeded = errors.New("token budget exceeded")

// TokenTracker tracks cumulative token usage and enforces budgets.
type TokenTracker struct {
	mu     sync.Mutex
	budget int
	used   TokenUsage
	calls  int
}

// NewTokenTracker creates a tracker with the given budget.
// A budget of 0 means unlimited.
func NewTokenTracker(budget int) *TokenTracker {
	return &TokenTracker{budget: budget}
}

// Add records token usage from a single LLM call.
func (t *TokenTracker) Add(usage TokenUsage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.used.InputTokens += usage.InputTokens
	t.used.OutputTokens += usage.OutputTokens
	t.calls++
}

// CheckBudget returns an error wrapping ErrBudgetExceeded if the budget would
// be exceeded by additional tokens.
func (t *TokenTracker) CheckBudget(additional int) error {
	if t.budget <= 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	total := t.used.Total() + additional
	if total > t.budget {
		return fmt.Errorf("%w: used %d + requested %d > budget %d",
			ErrBudgetExceeded, t.used.Total(), additional, t.budget)
	}
	return nil
}

// Usage returns the current cumulative usage.
func (t *TokenTracker) Usage() TokenUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.used
}

// Calls returns the number of recorded model calls.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Remaining returns the number of tokens remaining in the budget.
// Returns -1 if the budget is unlimited.
func (t *TokenTracker) Remaining() int {
	if t.budget <= 0 {
		return -1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	rem := t.budget - t.used.Total()
	if rem < 0 {
		return 0
	}
	return rem
}

// CallStats describes one completed model call.
type CallStats struct {
	Model    string
	Usage    TokenUsage
	Duration time.Duration
	Err      error
}

// TrackingClient records usage of every call made through the wrapped client.
type TrackingClient struct {
	inner   Client
	tracker *TokenTracker
	observe func(CallStats)
}

// NewTrackingClient wraps inner. observe may be nil.
func NewTrackingClient(inner Client, tracker *TokenTracker, observe func(CallStats)) *TrackingClient {
	return &TrackingClient{inner: inner, tracker: tracker, observe: observe}
}

// Chat forwards the request and records its usage.
func (c *TrackingClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()
	resp, err := c.inner.Chat(ctx, req)

	stats := CallStats{Model: req.Model, Duration: time.Since(start), Err: err}
	if resp != nil {
		stats.Usage = resp.Usage
		if c.tracker != nil {
			c.tracker.Add(resp.Usage)
		}
	}
	if c.observe != nil {
		c.observe(stats)
	}
	return resp, err
}

// Package loop drives the agent: it assembles the model context, parses the
// proposed action, dispatches it and folds the result back into memory.
package loop

import (
	"github.com/szaher/miniagi/internal/memory"
	"github.com/szaher/miniagi/internal/telemetry"
	"github.com/szaher/miniagi/internal/tokens"
)

// Defaults for session budgets.
const (
	DefaultMaxContextTokens = 4000
	DefaultRecallLimit      = 32
)

// Session is the state of one agent run. It is owned by a single Agent and
// never persisted for restoration.
type Session struct {
	ID        string
	Objective string

	// The per-record limit belongs to Memory.
	MaxContextTokens int
	RecallLimit      int

	// Criticism is included at the end of the next context and cleared after
	// each dispatch or user response.
	Criticism string

	LastThought  string
	LastCommand  string
	LastArgument string

	Memory    *memory.Store
	Estimator tokens.Estimator
}

// NewSession creates a session with default budgets and a fresh ID.
func NewSession(objective string, store *memory.Store, est tokens.Estimator) *Session {
	if est == nil {
		est = tokens.Heuristic{}
	}
	return &Session{
		ID:               telemetry.NewSessionID(),
		Objective:        objective,
		MaxContextTokens: DefaultMaxContextTokens,
		RecallLimit:      DefaultRecallLimit,
		Memory:           store,
		Estimator:        est,
	}
}

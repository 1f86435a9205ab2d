// Package memory keeps the agent's action log and its cumulative summary.
package memory

import (
	"context"
	"fmt"
	"time"
)

// ThoughtCommand is the command whose records are rendered as thoughts.
const ThoughtCommand = "memorize_thoughts"

// Summarization hints passed to the summarizer.
const (
	ObservationHint = "Summarize the text using short sentences and abbreviations."
	HistoryHint     = "You are an autonomous agent summarizing your history. " +
		"Generate a new summary given the summary of your past actions and the latest action. " +
		"Include a list of all previous actions. Keep it short. Use short sentences and abbreviations."
)

// Kind distinguishes deliberate reflection from tool results.
type Kind string

const (
	KindThought Kind = "thought"
	KindAction  Kind = "action"
)

// ActionRecord is one completed cycle. Records are immutable once stored.
type ActionRecord struct {
	Seq         int       `json:"seq"`
	Command     string    `json:"command"`
	Argument    string    `json:"argument"`
	Action      string    `json:"action"`
	Observation string    `json:"observation"`
	Summarized  bool      `json:"summarized"`
	Kind        Kind      `json:"kind"`
	CreatedAt   time.Time `json:"created_at"`
}

// Render returns the text the model sees for this record.
func (r ActionRecord) Render() string {
	if r.Kind == KindThought {
		return fmt.Sprintf("ACTION:\n%s\nTHOUGHTS:\n%s\n", ThoughtCommand, r.Observation)
	}
	return fmt.Sprintf("ACTION:\n%s\nRESULT:\n%s\n", r.Action, r.Observation)
}

// Sink receives a write-only copy of memory changes.
type Sink interface {
	RecordAppended(ctx context.Context, rec ActionRecord) error
	SummaryUpdated(ctx context.Context, seq int, summary string) error
}

// Summarization kinds reported to Options.OnSummarize.
const (
	SummarizeObservation = "observation"
	SummarizeHistory     = "history"
)

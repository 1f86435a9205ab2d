package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/szaher/miniagi/internal/summarize"
	"github.com/szaher/miniagi/internal/tokens"
)

// DefaultMaxItemTokens is used when Options.MaxItemTokens is unset.
const DefaultMaxItemTokens = 2000

// Options configures a Store.
type Options struct {
	Estimator     tokens.Estimator
	Summarizer    summarize.Summarizer
	MaxItemTokens int
	Sink          Sink
	Logger        *slog.Logger

	// OnSummarize is called after every summarizer call with its kind
	// and error.
	OnSummarize func(kind string, err error)

	now func() time.Time
}

// Store is an append-only log of action records plus a running summary.
// The summary covers every record ever appended once UpdateSummary has
// caught up; it is never restarted.
type Store struct {
	mu      sync.Mutex
	opts    Options
	records []ActionRecord
	summary string
	folded  int
}

// New creates an empty store with an empty summary.
func New(opts Options) *Store {
	if opts.Estimator == nil {
		opts.Estimator = tokens.Heuristic{}
	}
	if opts.MaxItemTokens <= 0 {
		opts.MaxItemTokens = DefaultMaxItemTokens
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	return &Store{opts: opts}
}

// Append stores the observation of command. Observations over the item
// budget are summarized first; if that fails, the record carries an error
// note instead so the failure stays visible to the model.
func (s *Store) Append(ctx context.Context, command, argument, observation string) ActionRecord {
	rec := ActionRecord{
		Command:     command,
		Argument:    argument,
		Action:      command + "\n" + argument,
		Observation: observation,
		Kind:        KindAction,
		CreatedAt:   s.opts.now(),
	}
	if command == ThoughtCommand {
		rec.Kind = KindThought
	}

	if n := s.opts.Estimator.Estimate(observation); n > s.opts.MaxItemTokens {
		rec.Observation, rec.Summarized = s.compress(ctx, observation, n)
	}

	s.mu.Lock()
	rec.Seq = len(s.records)
	s.records = append(s.records, rec)
	s.mu.Unlock()

	s.opts.Logger.Debug("memory record appended",
		"seq", rec.Seq, "command", command, "kind", rec.Kind, "summarized", rec.Summarized)

	if s.opts.Sink != nil {
		if err := s.opts.Sink.RecordAppended(ctx, rec); err != nil {
			s.opts.Logger.Warn("memory sink failed", "op", "record_appended", "error", err)
		}
	}
	return rec
}

func (s *Store) compress(ctx context.Context, observation string, size int) (string, bool) {
	if s.opts.Summarizer == nil {
		return fmt.Sprintf("Error: the result (%d tokens) exceeds the memory item limit of %d tokens and no summarizer is configured.",
			size, s.opts.MaxItemTokens), false
	}
	out, err := s.opts.Summarizer.Summarize(ctx, observation, s.opts.MaxItemTokens, ObservationHint)
	s.observe(SummarizeObservation, err)
	if err != nil {
		s.opts.Logger.Warn("observation summarization failed", "tokens", size, "error", err)
		return fmt.Sprintf("Error: the result (%d tokens) exceeds the memory item limit of %d tokens and could not be summarized: %v",
			size, s.opts.MaxItemTokens, err), false
	}
	return out, true
}

// UpdateSummary folds every record not yet folded into the running
// summary, oldest first. Records already folded are never folded again.
// On failure the summary keeps the last successful fold and the remaining
// records are retried by the next call.
func (s *Store) UpdateSummary(ctx context.Context) error {
	if s.opts.Summarizer == nil {
		return fmt.Errorf("memory: update summary: no summarizer configured")
	}
	for {
		s.mu.Lock()
		if s.folded >= len(s.records) {
			s.mu.Unlock()
			return nil
		}
		rec := s.records[s.folded]
		current := s.summary
		s.mu.Unlock()

		prompt := fmt.Sprintf("Current summary:\n%s\nAdd to summary:\n%s", current, rec.Render())
		next, err := s.opts.Summarizer.Summarize(ctx, prompt, s.opts.MaxItemTokens, HistoryHint)
		s.observe(SummarizeHistory, err)
		if err != nil {
			return fmt.Errorf("memory: update summary: record %d: %w", rec.Seq, err)
		}

		s.mu.Lock()
		s.summary = next
		s.folded = rec.Seq + 1
		s.mu.Unlock()

		if s.opts.Sink != nil {
			if err := s.opts.Sink.SummaryUpdated(ctx, rec.Seq, next); err != nil {
				s.opts.Logger.Warn("memory sink failed", "op", "summary_updated", "error", err)
			}
		}
	}
}

// Recall returns the rendered tail of the log, oldest first. It returns at
// most limit records, and drops the oldest candidates until the estimate of
// the newline-joined rendering fits maxTokens. Records are never truncated.
func (s *Store) Recall(limit, maxTokens int) []string {
	if limit <= 0 || maxTokens <= 0 {
		return nil
	}

	s.mu.Lock()
	start := len(s.records) - limit
	if start < 0 {
		start = 0
	}
	window := make([]string, 0, len(s.records)-start)
	for _, rec := range s.records[start:] {
		window = append(window, rec.Render())
	}
	s.mu.Unlock()

	for len(window) > 0 && s.opts.Estimator.Estimate(strings.Join(window, "\n")) > maxTokens {
		window = window[1:]
	}
	if len(window) == 0 {
		return nil
	}
	return window
}

// Summary returns the running summary.
func (s *Store) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Pending returns the number of records not yet folded into the summary.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records) - s.folded
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Records returns a copy of all records in insertion order.
func (s *Store) Records() []ActionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ActionRecord(nil), s.records...)
}

func (s *Store) observe(kind string, err error) {
	if s.opts.OnSummarize != nil {
		s.opts.OnSummarize(kind, err)
	}
}

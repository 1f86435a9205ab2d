package memory

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/szaher/miniagi/internal/summarize"
	"github.com/szaher/miniagi/internal/testutil"
	"github.com/szaher/miniagi/internal/tokens"
)

type summarizeCall struct {
	Text      string
	MaxTokens int
	Hint      string
}

// fakeSummarizer records its calls and returns a fixed reply.
type fakeSummarizer struct {
	calls []summarizeCall
	reply func(text string) string
	err   error
}

func (f *fakeSummarizer) Summarize(_ context.Context, text string, maxTokens int, hint string) (string, error) {
	f.calls = append(f.calls, summarizeCall{Text: text, MaxTokens: maxTokens, Hint: hint})
	if f.err != nil {
		return "", f.err
	}
	if f.reply != nil {
		return f.reply(text), nil
	}
	return "summary", nil
}

// recordingSink collects sink notifications.
type recordingSink struct {
	records   []ActionRecord
	summaries []string
	err       error
}

func (r *recordingSink) RecordAppended(_ context.Context, rec ActionRecord) error {
	r.records = append(r.records, rec)
	return r.err
}

func (r *recordingSink) SummaryUpdated(_ context.Context, _ int, summary string) error {
	r.summaries = append(r.summaries, summary)
	return r.err
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		rec  ActionRecord
		want string
	}{
		{
			name: "thought",
			rec:  ActionRecord{Kind: KindThought, Action: "memorize_thoughts\nplan", Observation: "plan"},
			want: "ACTION:\nmemorize_thoughts\nTHOUGHTS:\nplan\n",
		},
		{
			name: "action",
			rec:  ActionRecord{Kind: KindAction, Action: "execute_shell\nls", Observation: "a.txt"},
			want: "ACTION:\nexecute_shell\nls\nRESULT:\na.txt\n",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.rec.Render(); got != tc.want {
				t.Errorf("Render() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAppend(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	sink := &recordingSink{}
	s := New(Options{Sink: sink, now: func() time.Time { return fixed }})

	first := s.Append(context.Background(), "memorize_thoughts", "think", "think")
	second := s.Append(context.Background(), "execute_shell", "ls", "out")

	want := []ActionRecord{
		{Seq: 0, Command: "memorize_thoughts", Argument: "think", Action: "memorize_thoughts\nthink",
			Observation: "think", Kind: KindThought, CreatedAt: fixed},
		{Seq: 1, Command: "execute_shell", Argument: "ls", Action: "execute_shell\nls",
			Observation: "out", Kind: KindAction, CreatedAt: fixed},
	}
	if diff := cmp.Diff(want, s.Records()); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, []ActionRecord{first, second}); diff != "" {
		t.Errorf("returned records mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, sink.records); diff != "" {
		t.Errorf("sink records mismatch (-want +got):\n%s", diff)
	}
	if s.Len() != 2 || s.Pending() != 2 {
		t.Errorf("Len=%d Pending=%d, want 2 and 2", s.Len(), s.Pending())
	}
}

func TestAppend_SummarizesLargeObservation(t *testing.T) {
	sum := &fakeSummarizer{reply: func(string) string { return "compressed" }}
	var kinds []string
	s := New(Options{
		Estimator:     tokens.Heuristic{},
		Summarizer:    sum,
		MaxItemTokens: 10,
		OnSummarize:   func(kind string, _ error) { kinds = append(kinds, kind) },
	})

	big := strings.Repeat("x", 400)
	rec := s.Append(context.Background(), "execute_shell", "cat big", big)

	if rec.Observation != "compressed" || !rec.Summarized {
		t.Errorf("expected summarized observation, got %q (summarized=%v)", rec.Observation, rec.Summarized)
	}
	want := []summarizeCall{{Text: big, MaxTokens: 10, Hint: ObservationHint}}
	if diff := cmp.Diff(want, sum.calls); diff != "" {
		t.Errorf("summarizer calls mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{SummarizeObservation}, kinds); diff != "" {
		t.Errorf("observed kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestAppend_SmallObservationNotSummarized(t *testing.T) {
	sum := &fakeSummarizer{}
	s := New(Options{Summarizer: sum, MaxItemTokens: 10})

	rec := s.Append(context.Background(), "execute_shell", "ls", "tiny")
	if rec.Observation != "tiny" || rec.Summarized || len(sum.calls) != 0 {
		t.Errorf("unexpected record %+v with %d summarizer calls", rec, len(sum.calls))
	}
}

func TestAppend_SummarizerFailureKeepsErrorNote(t *testing.T) {
	sum := &fakeSummarizer{err: errors.New("model offline")}
	s := New(Options{Summarizer: sum, MaxItemTokens: 5})

	rec := s.Append(context.Background(), "ingest_data", "big.txt", strings.Repeat("y", 200))
	if rec.Summarized {
		t.Error("failed summarization must not be marked as summarized")
	}
	if !strings.HasPrefix(rec.Observation, "Error:") || !strings.Contains(rec.Observation, "model offline") {
		t.Errorf("expected error note, got %q", rec.Observation)
	}
}

func TestAppend_SinkErrorIgnored(t *testing.T) {
	s := New(Options{Sink: &recordingSink{err: errors.New("disk full")}})
	s.Append(context.Background(), "execute_shell", "ls", "ok")
	if s.Len() != 1 {
		t.Fatalf("expected record to be stored despite sink error")
	}
}

func TestUpdateSummary(t *testing.T) {
	sum := &fakeSummarizer{reply: func(text string) string {
		return fmt.Sprintf("S%d", strings.Count(text, "ACTION:"))
	}}
	sink := &recordingSink{}
	s := New(Options{Summarizer: sum, MaxItemTokens: 50, Sink: sink})
	ctx := context.Background()

	s.Append(ctx, "execute_shell", "ls", "a")
	if err := s.UpdateSummary(ctx); err != nil {
		t.Fatalf("UpdateSummary: %v", err)
	}
	s.Append(ctx, "memorize_thoughts", "idea", "idea")

	if err := s.UpdateSummary(ctx); err != nil {
		t.Fatalf("UpdateSummary: %v", err)
	}

	want := []summarizeCall{
		{Text: "Current summary:\n\nAdd to summary:\nACTION:\nexecute_shell\nls\nRESULT:\na\n", MaxTokens: 50, Hint: HistoryHint},
		{Text: "Current summary:\nS1\nAdd to summary:\nACTION:\nmemorize_thoughts\nTHOUGHTS:\nidea\n", MaxTokens: 50, Hint: HistoryHint},
	}
	if diff := cmp.Diff(want, sum.calls); diff != "" {
		t.Errorf("summarizer calls mismatch (-want +got):\n%s", diff)
	}
	if s.Summary() != "S1" {
		t.Errorf("Summary() = %q, want %q", s.Summary(), "S1")
	}
	if diff := cmp.Diff([]string{"S1", "S1"}, sink.summaries); diff != "" {
		t.Errorf("sink summaries mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateSummary_Idempotent(t *testing.T) {
	sum := &fakeSummarizer{}
	s := New(Options{Summarizer: sum})
	ctx := context.Background()

	s.Append(ctx, "execute_shell", "ls", "a")
	s.Append(ctx, "execute_shell", "pwd", "/tmp")

	for i := 0; i < 3; i++ {
		if err := s.UpdateSummary(ctx); err != nil {
			t.Fatalf("UpdateSummary: %v", err)
		}
	}
	if len(sum.calls) != 2 {
		t.Errorf("expected one fold per record (2), got %d", len(sum.calls))
	}
	if s.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", s.Pending())
	}
}

func TestUpdateSummary_FailureLeavesSummary(t *testing.T) {
	sum := &fakeSummarizer{}
	s := New(Options{Summarizer: sum})
	ctx := context.Background()

	s.Append(ctx, "execute_shell", "ls", "a")
	if err := s.UpdateSummary(ctx); err != nil {
		t.Fatalf("UpdateSummary: %v", err)
	}

	s.Append(ctx, "execute_shell", "pwd", "/tmp")
	sum.err = errors.New("timeout")
	err := s.UpdateSummary(ctx)
	testutil.AssertErrorContains(t, err, "record 1")
	if s.Summary() != "summary" || s.Pending() != 1 {
		t.Errorf("summary=%q pending=%d after failure", s.Summary(), s.Pending())
	}

	sum.err = nil
	if err := s.UpdateSummary(ctx); err != nil {
		t.Fatalf("retry UpdateSummary: %v", err)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending() = %d after retry, want 0", s.Pending())
	}
}

func TestUpdateSummary_NoSummarizer(t *testing.T) {
	s := New(Options{})
	testutil.AssertErrorContains(t, s.UpdateSummary(context.Background()), "no summarizer")
}

func TestRecall(t *testing.T) {
	est := tokens.Heuristic{}
	s := New(Options{Estimator: est})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.Append(ctx, "execute_shell", fmt.Sprintf("echo %d", i), fmt.Sprint(i))
	}
	one := s.Records()[4].Render()

	t.Run("limit", func(t *testing.T) {
		got := s.Recall(2, 10000)
		want := []string{s.Records()[3].Render(), s.Records()[4].Render()}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Recall mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("budget drops oldest", func(t *testing.T) {
		got := s.Recall(32, est.Estimate(one))
		if diff := cmp.Diff([]string{one}, got); diff != "" {
			t.Errorf("Recall mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("record larger than budget is dropped", func(t *testing.T) {
		if got := s.Recall(32, est.Estimate(one)-1); len(got) != 0 {
			t.Errorf("expected empty recall, got %q", got)
		}
	})

	t.Run("non-positive arguments", func(t *testing.T) {
		if s.Recall(0, 100) != nil || s.Recall(10, 0) != nil {
			t.Error("expected nil for non-positive limit or budget")
		}
	})
}

func TestRecall_Bounds(t *testing.T) {
	est := tokens.Heuristic{}
	rng := rand.New(rand.NewSource(7))
	ctx := context.Background()

	for trial := 0; trial < 50; trial++ {
		s := New(Options{Estimator: est, MaxItemTokens: 1 << 20})
		n := rng.Intn(40)
		for i := 0; i < n; i++ {
			cmd := "execute_shell"
			if rng.Intn(4) == 0 {
				cmd = ThoughtCommand
			}
			s.Append(ctx, cmd, "arg", strings.Repeat("z", rng.Intn(300)))
		}

		limit := rng.Intn(10)
		budget := rng.Intn(400)
		got := s.Recall(limit, budget)

		if len(got) > limit {
			t.Fatalf("trial %d: %d records exceed limit %d", trial, len(got), limit)
		}
		if size := est.Estimate(strings.Join(got, "\n")); size > budget {
			t.Fatalf("trial %d: recall size %d exceeds budget %d", trial, size, budget)
		}
		recs := s.Records()
		for i, r := range got {
			if r != recs[len(recs)-len(got)+i].Render() {
				t.Fatalf("trial %d: recall is not the ordered tail of the log", trial)
			}
		}
	}
}

var _ summarize.Summarizer = (*fakeSummarizer)(nil)

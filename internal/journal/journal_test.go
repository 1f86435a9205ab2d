package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/szaher/miniagi/internal/memory"
)

func openTest(t *testing.T) *SQLite {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "nested", "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournal_RoundTripsSession(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()
	created := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	if err := j.StartSession(ctx, "S1", "find a cookie recipe", "gpt-4o"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	sink := j.Sink("S1")
	records := []memory.ActionRecord{
		{Seq: 0, Command: "memorize_thoughts", Argument: "plan", Action: "memorize_thoughts\nplan",
			Observation: "plan", Kind: memory.KindThought, CreatedAt: created},
		{Seq: 1, Command: "ingest_data", Argument: "https://example.com", Action: "ingest_data\nhttps://example.com",
			Observation: "short", Summarized: true, Kind: memory.KindAction, CreatedAt: created},
	}
	for _, rec := range records {
		if err := sink.RecordAppended(ctx, rec); err != nil {
			t.Fatalf("RecordAppended: %v", err)
		}
	}
	if err := sink.SummaryUpdated(ctx, 0, "planned"); err != nil {
		t.Fatalf("SummaryUpdated: %v", err)
	}
	if err := sink.SummaryUpdated(ctx, 1, "planned, fetched page"); err != nil {
		t.Fatalf("SummaryUpdated: %v", err)
	}
	if err := j.EndSession(ctx, "S1", "done"); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	tr, err := j.Transcript(ctx, "S1")
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	if diff := cmp.Diff(records, tr.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if tr.Summary != "planned, fetched page" {
		t.Errorf("Summary = %q", tr.Summary)
	}

	want := SessionInfo{ID: "S1", Objective: "find a cookie recipe", Model: "gpt-4o", EndReason: "done", Records: 2}
	if diff := cmp.Diff(want, tr.Session, cmpopts.IgnoreFields(SessionInfo{}, "StartedAt", "EndedAt")); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}
	if tr.Session.StartedAt.IsZero() || tr.Session.EndedAt.IsZero() {
		t.Error("expected start and end timestamps")
	}
}

func TestJournal_ListSessions(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"A", "B"} {
		ts := base.Add(time.Duration(i) * time.Hour)
		j.now = func() time.Time { return ts }
		if err := j.StartSession(ctx, id, "objective "+id, "m"); err != nil {
			t.Fatalf("StartSession: %v", err)
		}
	}

	sessions, err := j.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != "B" || sessions[1].ID != "A" {
		t.Fatalf("expected newest first, got %+v", sessions)
	}
	if !sessions[0].EndedAt.IsZero() {
		t.Error("unfinished session should have zero EndedAt")
	}
}

func TestJournal_UnknownSession(t *testing.T) {
	j := openTest(t)
	_, err := j.Transcript(context.Background(), "missing")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestJournal_ForeignKeyRejectsUnknownSession(t *testing.T) {
	j := openTest(t)
	err := j.Sink("ghost").RecordAppended(context.Background(), memory.ActionRecord{Command: "x", Kind: memory.KindAction})
	if err == nil {
		t.Fatal("expected foreign key violation for unknown session")
	}
}

// Package journal records agent sessions to SQLite for later inspection.
// Journals are write-only from the agent's side: nothing is loaded back
// into a running session.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/szaher/miniagi/internal/memory"
)

// ErrSessionNotFound is returned by Transcript for unknown sessions.
var ErrSessionNotFound = errors.New("session not found")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	objective   TEXT NOT NULL,
	model       TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	ended_at    TEXT,
	end_reason  TEXT
);
CREATE TABLE IF NOT EXISTS records (
	session_id  TEXT NOT NULL REFERENCES sessions(id),
	seq         INTEGER NOT NULL,
	command     TEXT NOT NULL,
	argument    TEXT NOT NULL,
	observation TEXT NOT NULL,
	summarized  INTEGER NOT NULL DEFAULT 0,
	kind        TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	PRIMARY KEY (session_id, seq)
);
CREATE TABLE IF NOT EXISTS summaries (
	session_id  TEXT NOT NULL REFERENCES sessions(id),
	seq         INTEGER NOT NULL,
	summary     TEXT NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_summaries_session ON summaries(session_id, seq);
`

// SQLite is a journal backed by a SQLite database file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the journal at path.
func Open(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal: create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the database.
func (j *SQLite) Close() error {
	return j.db.Close()
}

// StartSession records the start of a session.
func (j *SQLite) StartSession(ctx context.Context, id, objective, model string) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO sessions (id, objective, model, started_at) VALUES (?, ?, ?, ?)`,
		id, objective, model, j.timestamp(j.now()))
	if err != nil {
		return fmt.Errorf("journal: start session: %w", err)
	}
	return nil
}

// EndSession records how a session ended.
func (j *SQLite) EndSession(ctx context.Context, id, reason string) error {
	_, err := j.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ?, end_reason = ? WHERE id = ?`,
		j.timestamp(j.now()), reason, id)
	if err != nil {
		return fmt.Errorf("journal: end session: %w", err)
	}
	return nil
}

// Sink returns a memory.Sink that writes to session id.
func (j *SQLite) Sink(id string) memory.Sink {
	return &sessionSink{j: j, id: id}
}

type sessionSink struct {
	j  *SQLite
	id string
}

func (s *sessionSink) RecordAppended(ctx context.Context, rec memory.ActionRecord) error {
	_, err := s.j.db.ExecContext(ctx,
		`INSERT INTO records (session_id, seq, command, argument, observation, summarized, kind, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.id, rec.Seq, rec.Command, rec.Argument, rec.Observation, rec.Summarized, string(rec.Kind),
		s.j.timestamp(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("journal: append record %d: %w", rec.Seq, err)
	}
	return nil
}

func (s *sessionSink) SummaryUpdated(ctx context.Context, seq int, summary string) error {
	_, err := s.j.db.ExecContext(ctx,
		`INSERT INTO summaries (session_id, seq, summary, created_at) VALUES (?, ?, ?, ?)`,
		s.id, seq, summary, s.j.timestamp(s.j.now()))
	if err != nil {
		return fmt.Errorf("journal: append summary %d: %w", seq, err)
	}
	return nil
}

func (j *SQLite) timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/szaher/miniagi/internal/memory"
)

// SessionInfo summarizes one journaled session.
type SessionInfo struct {
	ID        string
	Objective string
	Model     string
	StartedAt time.Time
	EndedAt   time.Time // zero while running or after a crash
	EndReason string
	Records   int
}

// Transcript is the full journal of one session.
type Transcript struct {
	Session SessionInfo
	Records []memory.ActionRecord
	Summary string // latest running summary
}

// ListSessions returns all sessions, newest first.
func (j *SQLite) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT s.id, s.objective, s.model, s.started_at, COALESCE(s.ended_at, ''), COALESCE(s.end_reason, ''),
		       (SELECT COUNT(*) FROM records r WHERE r.session_id = s.id)
		FROM sessions s
		ORDER BY s.started_at DESC, s.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("journal: list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []SessionInfo
	for rows.Next() {
		info, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, info)
	}
	return sessions, rows.Err()
}

// Transcript loads the records and latest summary of session id.
func (j *SQLite) Transcript(ctx context.Context, id string) (*Transcript, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT s.id, s.objective, s.model, s.started_at, COALESCE(s.ended_at, ''), COALESCE(s.end_reason, ''),
		       (SELECT COUNT(*) FROM records r WHERE r.session_id = s.id)
		FROM sessions s WHERE s.id = ?`, id)
	info, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("journal: %w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	t := &Transcript{Session: info}

	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, command, argument, observation, summarized, kind, created_at
		FROM records WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("journal: load records: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			rec     memory.ActionRecord
			kind    string
			created string
		)
		if err := rows.Scan(&rec.Seq, &rec.Command, &rec.Argument, &rec.Observation, &rec.Summarized, &kind, &created); err != nil {
			return nil, fmt.Errorf("journal: scan record: %w", err)
		}
		rec.Kind = memory.Kind(kind)
		rec.Action = rec.Command + "\n" + rec.Argument
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		t.Records = append(t.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: load records: %w", err)
	}

	err = j.db.QueryRowContext(ctx, `
		SELECT summary FROM summaries WHERE session_id = ? ORDER BY seq DESC, rowid DESC LIMIT 1`, id).Scan(&t.Summary)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("journal: load summary: %w", err)
	}
	return t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(s scanner) (SessionInfo, error) {
	var (
		info           SessionInfo
		started, ended string
	)
	if err := s.Scan(&info.ID, &info.Objective, &info.Model, &started, &ended, &info.EndReason, &info.Records); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return info, err
		}
		return info, fmt.Errorf("journal: scan session: %w", err)
	}
	info.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if ended != "" {
		info.EndedAt, _ = time.Parse(time.RFC3339Nano, ended)
	}
	return info, nil
}

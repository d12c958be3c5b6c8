// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ManuGH/crazifier/internal/persistence/sqlite"
)

const schemaVersion = 1

// SqliteStore persists entries in a SQLite database.
type SqliteStore struct {
	DB *sql.DB
}

// NewSqliteStore opens (and migrates) the journal at dbPath.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	s := &SqliteStore{DB: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: migration failed: %w", err)
	}
	return s, nil
}

func (s *SqliteStore) migrate() error {
	var current int
	if err := s.DB.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS render_jobs (
		job_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		file TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		output_name TEXT NOT NULL DEFAULT '',
		duration_s REAL NOT NULL,
		intensity INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		started_at_ms INTEGER NOT NULL,
		finished_at_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_render_jobs_finished ON render_jobs(finished_at_ms);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// Record inserts e. Recording the same job twice keeps the later outcome.
func (s *SqliteStore) Record(ctx context.Context, e Entry) error {
	query := `
	INSERT INTO render_jobs (job_id, session_id, kind, file, label, output_name, duration_s, intensity, outcome, error, started_at_ms, finished_at_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(job_id) DO UPDATE SET
		outcome = excluded.outcome,
		error = excluded.error,
		finished_at_ms = excluded.finished_at_ms
	`
	_, err := s.DB.ExecContext(ctx, query,
		e.JobID, e.SessionID, e.Kind, e.File, e.Label, e.OutputName, e.Duration, e.Intensity,
		string(e.Outcome), e.Error, e.StartedAt.UnixMilli(), e.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("journal: record %s: %w", e.JobID, err)
	}
	return nil
}

// List returns up to limit entries, newest first.
func (s *SqliteStore) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.DB.QueryContext(ctx, `
	SELECT job_id, session_id, kind, file, label, output_name, duration_s, intensity, outcome, error, started_at_ms, finished_at_ms
	FROM render_jobs ORDER BY finished_at_ms DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var (
			e                   Entry
			outcome             string
			startedMS, finishMS int64
		)
		if err := rows.Scan(&e.JobID, &e.SessionID, &e.Kind, &e.File, &e.Label, &e.OutputName,
			&e.Duration, &e.Intensity, &outcome, &e.Error, &startedMS, &finishMS); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.Outcome = Outcome(outcome)
		e.StartedAt = time.UnixMilli(startedMS).UTC()
		e.FinishedAt = time.UnixMilli(finishMS).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SqliteStore) Close() error {
	return s.DB.Close()
}

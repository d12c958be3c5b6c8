// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package journal keeps the history of render jobs.
package journal

import (
	"context"
	"time"
)

// Outcome is how a render job ended.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeFailed      Outcome = "failed"
	OutcomeStopped     Outcome = "stopped"
	OutcomeAutoStopped Outcome = "auto_stopped"
	OutcomeSuperseded  Outcome = "superseded"
)

// Entry is one finished render job.
type Entry struct {
	JobID      string    `json:"jobId"`
	SessionID  string    `json:"sessionId"`
	Kind       string    `json:"kind"`
	File       string    `json:"file"`
	Label      string    `json:"label,omitempty"`
	OutputName string    `json:"outputName,omitempty"`
	Duration   float64   `json:"duration"`
	Intensity  int       `json:"intensity"`
	Outcome    Outcome   `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Store persists entries. List returns the newest first.
type Store interface {
	Record(ctx context.Context, e Entry) error
	List(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// DefaultListLimit applies when List is called with a non-positive limit.
const DefaultListLimit = 50

// NewStore returns a SQLite store at path, or an in-memory store when
// path is empty.
func NewStore(path string) (Store, error) {
	if path == "" {
		return NewMemoryStore(DefaultListLimit * 4), nil
	}
	return NewSqliteStore(path)
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"time"

	"github.com/ManuGH/crazifier/internal/duration"
)

// Status is the session state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProbing    Status = "probing"
	StatusProbeError Status = "probe_error"
	StatusReady      Status = "ready"
	StatusRendering  Status = "rendering"
	StatusStopping   Status = "stopping"
)

// ErrorKind classifies Snapshot.LastError.
type ErrorKind string

const (
	ErrorNone       ErrorKind = ""
	ErrorTooLong    ErrorKind = "too_long"
	ErrorUnreadable ErrorKind = "unreadable"
	ErrorTransport  ErrorKind = "transport_error"
	ErrorNetwork    ErrorKind = "network_failure"
	ErrorBackend    ErrorKind = "backend_error"
)

func probeErrorKind(k duration.Kind) ErrorKind {
	switch k {
	case duration.TooLong:
		return ErrorTooLong
	case duration.Unreadable:
		return ErrorUnreadable
	case duration.TransportError:
		return ErrorTransport
	default:
		return ErrorNone
	}
}

// JobKind distinguishes the two render operations.
type JobKind string

const (
	JobPlay JobKind = "play"
	JobSave JobKind = "save"
)

// JobInfo describes the render job in flight.
type JobInfo struct {
	ID        string    `json:"id"`
	Kind      JobKind   `json:"kind"`
	Duration  float64   `json:"duration"`
	Intensity int       `json:"intensity"`
	StartedAt time.Time `json:"startedAt"`
	// AutoStopAt is set once a play was acknowledged and the auto-stop
	// timer is armed.
	AutoStopAt *time.Time `json:"autoStopAt,omitempty"`
}

// FileInfo describes the selected file.
type FileInfo struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
}

// Snapshot is a consistent read-only copy of the session.
type Snapshot struct {
	SessionID         string    `json:"sessionId"`
	Status            Status    `json:"status"`
	File              *FileInfo `json:"file,omitempty"`
	ProbedDuration    float64   `json:"probedDuration"`
	HasProbe          bool      `json:"hasProbe"`
	RequestedDuration float64   `json:"requestedDuration"`
	RenderDuration    float64   `json:"renderDuration"`
	MaxDuration       float64   `json:"maxDuration"`
	Intensity         int       `json:"intensity"`
	OutputName        string    `json:"outputName"`
	LastError         string    `json:"lastError,omitempty"`
	ErrorKind         ErrorKind `json:"errorKind,omitempty"`
	Job               *JobInfo  `json:"job,omitempty"`
}

// CanRender reports whether Play and Save are currently allowed.
func (s Snapshot) CanRender() bool {
	return s.Status == StatusReady && s.File != nil && s.RenderDuration > 0
}

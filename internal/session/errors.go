// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"errors"
	"fmt"

	"github.com/ManuGH/crazifier/internal/duration"
	"github.com/ManuGH/crazifier/internal/gateway"
)

var (
	// ErrNotReady rejects Play, Save and duration commits outside ready.
	ErrNotReady = errors.New("session: no ready file")
	// ErrNotRendering rejects Stop when nothing is rendering.
	ErrNotRendering = errors.New("session: not rendering")
	// ErrBusy rejects parameter changes while a render is in flight.
	ErrBusy = errors.New("session: render in progress")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("session: controller closed")
	// ErrSuperseded reports that a file change, Stop or Close replaced the
	// operation before it completed. Its result was discarded.
	ErrSuperseded = errors.New("session: superseded")
	// ErrInvalidIntensity rejects levels outside [MinIntensity, MaxIntensity].
	ErrInvalidIntensity = errors.New("session: intensity out of range")
	// ErrNoFile rejects a nil selection.
	ErrNoFile = errors.New("session: no file")
	// ErrDelivery wraps a sink failure after a successful save.
	ErrDelivery = errors.New("session: download delivery failed")
)

const cancelledMessage = "request cancelled"

// RenderError is a failed play or save.
type RenderError struct {
	Job     JobKind
	Kind    ErrorKind // ErrorNetwork or ErrorBackend
	Status  int
	Message string
	Err     error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Job, e.Message)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

func newRenderError(job JobKind, err error) *RenderError {
	re := &RenderError{Job: job, Kind: ErrorNetwork, Message: duration.GenericNetworkMessage, Err: err}
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		switch {
		case gwErr.IsBackend():
			re.Kind = ErrorBackend
			re.Status = gwErr.Status
			if gwErr.Message != "" {
				re.Message = gwErr.Message
			}
		case errors.Is(gwErr, gateway.ErrCancelled):
			re.Message = cancelledMessage
		}
	}
	return re
}

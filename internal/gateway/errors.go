// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package gateway

import (
	"context"
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNetworkFailure = errors.New("crazifier: backend unreachable or transport failure")
	ErrBackend        = errors.New("crazifier: backend rejected the request")
	ErrCancelled      = errors.New("crazifier: request cancelled")
	ErrBadResponse    = errors.New("crazifier: invalid response from backend")
)

// Error wraps a sentinel with the operation and whatever the backend said.
type Error struct {
	Sentinel  error
	Operation string
	Status    int
	// Message is the trimmed response body, suitable for display.
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("gateway: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Sentinel
}

// IsBackend reports whether the server answered. ErrBadResponse counts as
// a backend error: a response arrived but was unusable.
func (e *Error) IsBackend() bool {
	return errors.Is(e.Sentinel, ErrBackend) || errors.Is(e.Sentinel, ErrBadResponse)
}

// BackendMessage returns the text the backend sent with a failed request,
// or "" when the failure happened before a response arrived.
func BackendMessage(err error) string {
	var gwErr *Error
	if errors.As(err, &gwErr) && gwErr.IsBackend() {
		return gwErr.Message
	}
	return ""
}

func transportError(ctx context.Context, op string, err error) *Error {
	sentinel := ErrNetworkFailure
	if errors.Is(ctx.Err(), context.Canceled) {
		sentinel = ErrCancelled
	}
	return &Error{Sentinel: sentinel, Operation: op, Err: err}
}

// resultLabel maps an error to the metrics result label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrBadResponse):
		return "bad_response"
	case errors.Is(err, ErrBackend):
		return "backend"
	default:
		return "network"
	}
}

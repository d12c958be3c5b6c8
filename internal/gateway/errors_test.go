// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestError_Format(t *testing.T) {
	err := &Error{
		Sentinel:  ErrBackend,
		Operation: OpPlay,
		Status:    409,
		Message:   "Crazification already running!",
	}
	got := err.Error()
	for _, want := range []string{"gateway: play", "HTTP 409", "Crazification already running!"} {
		if !strings.Contains(got, want) {
			t.Errorf("Error() = %q, missing %q", got, want)
		}
	}
	if !errors.Is(err, ErrBackend) {
		t.Error("expected errors.Is(err, ErrBackend)")
	}
}

func TestTransportError_Classification(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := transportError(ctx, OpStop, context.Canceled); !errors.Is(err, ErrCancelled) {
		t.Errorf("cancelled caller context: got %v", err)
	}

	if err := transportError(context.Background(), OpStop, errors.New("dial tcp: refused")); !errors.Is(err, ErrNetworkFailure) {
		t.Errorf("dial failure: got %v", err)
	}

	deadline, cancel2 := context.WithTimeout(context.Background(), 0)
	defer cancel2()
	<-deadline.Done()
	if err := transportError(deadline, OpStop, context.DeadlineExceeded); !errors.Is(err, ErrNetworkFailure) {
		t.Errorf("deadline exceeded should count as network failure: got %v", err)
	}
}

func TestResultLabel(t *testing.T) {
	cases := map[string]error{
		"ok":           nil,
		"cancelled":    &Error{Sentinel: ErrCancelled},
		"bad_response": &Error{Sentinel: ErrBadResponse},
		"backend":      &Error{Sentinel: ErrBackend},
		"network":      &Error{Sentinel: ErrNetworkFailure},
	}
	for want, err := range cases {
		if got := resultLabel(err); got != want {
			t.Errorf("resultLabel(%v) = %q, want %q", err, got, want)
		}
	}
}

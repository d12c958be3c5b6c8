// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package duration probes an audio file's playable length on the backend
// and negotiates the render duration sent with play and save.
package duration

import (
	"context"
	"fmt"
	"math"

	"github.com/ManuGH/crazifier/internal/gateway"
	"github.com/ManuGH/crazifier/internal/log"
	"github.com/ManuGH/crazifier/internal/media"
	"github.com/ManuGH/crazifier/internal/metrics"
)

// GenericNetworkMessage is shown when a probe failed without any text
// from the backend.
const GenericNetworkMessage = "network error: could not reach the crazifier backend"

// UnreadableMessage is shown when the backend reported no usable duration.
const UnreadableMessage = "Could not read the audio duration of this file."

// Kind classifies a probe.
type Kind int

const (
	Valid Kind = iota
	TooLong
	Unreadable
	TransportError
)

func (k Kind) String() string {
	switch k {
	case Valid:
		return "valid"
	case TooLong:
		return "too_long"
	case Unreadable:
		return "unreadable"
	case TransportError:
		return "transport_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is the outcome of one probe. Duration is set for Valid and
// TooLong.
type Result struct {
	Kind     Kind
	Duration float64
	Max      float64
	// Detail is the transport failure text for TransportError.
	Detail string
}

// OK reports whether the file can be rendered.
func (r Result) OK() bool {
	return r.Kind == Valid
}

// Message is the user-facing description of a non-valid result.
func (r Result) Message() string {
	switch r.Kind {
	case TooLong:
		return fmt.Sprintf("File is too long! Maximum duration is %.1f seconds (file: %.1f s).", r.Max, r.Duration)
	case Unreadable:
		return UnreadableMessage
	case TransportError:
		if r.Detail != "" {
			return r.Detail
		}
		return GenericNetworkMessage
	default:
		return ""
	}
}

// Prober is the gateway call used by Probe.
type Prober interface {
	ProbeDuration(ctx context.Context, f *media.File) (float64, error)
}

// Probe classifies files against the global duration ceiling. It never
// touches session state.
type Probe struct {
	gw  Prober
	max float64
}

// NewProbe creates a probe with ceiling maxAbsolute seconds.
func NewProbe(gw Prober, maxAbsolute float64) *Probe {
	return &Probe{gw: gw, max: maxAbsolute}
}

// Probe asks the backend for f's duration.
func (p *Probe) Probe(ctx context.Context, f *media.File) Result {
	logger := log.WithComponentFromContext(ctx, "probe")

	raw, err := p.gw.ProbeDuration(ctx, f)
	res := p.classify(raw, err)
	metrics.RecordProbeResult(res.Kind.String())

	evt := logger.Info()
	if !res.OK() {
		evt = logger.Warn()
	}
	evt.Str(log.FieldEvent, "probe.completed").
		Str(log.FieldFile, f.Name).
		Str("result", res.Kind.String()).
		Float64(log.FieldDuration, res.Duration).
		Err(err).
		Msg("duration probe completed")
	return res
}

func (p *Probe) classify(raw float64, err error) Result {
	if err != nil {
		msg := gateway.BackendMessage(err)
		if msg == "" {
			msg = GenericNetworkMessage
		}
		return Result{Kind: TransportError, Max: p.max, Detail: msg}
	}

	d := Round(raw)
	switch {
	case math.IsNaN(d) || d <= 0:
		return Result{Kind: Unreadable, Max: p.max}
	case d > p.max:
		return Result{Kind: TooLong, Duration: d, Max: p.max}
	default:
		return Result{Kind: Valid, Duration: d, Max: p.max}
	}
}

// Round rounds seconds to millisecond precision.
func Round(seconds float64) float64 {
	return math.Round(seconds*1000) / 1000
}

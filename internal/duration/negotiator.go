// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package duration

import (
	"math"
	"strconv"
	"strings"
)

// MinDuration is the shortest render the backend accepts, in seconds.
const MinDuration = 1.0

// Negotiator separates what the user is typing from the render duration
// the session commits to.
type Negotiator struct {
	max float64
}

// NewNegotiator returns a negotiator clamping to [1, maxAbsolute].
// A ceiling below MinDuration collapses the range to MinDuration.
func NewNegotiator(maxAbsolute float64) Negotiator {
	if math.IsNaN(maxAbsolute) || maxAbsolute < MinDuration {
		maxAbsolute = MinDuration
	}
	return Negotiator{max: maxAbsolute}
}

// Max is the global ceiling in seconds.
func (n Negotiator) Max() float64 {
	return n.max
}

// Clamp forces d into [1, Max]. NaN clamps to the minimum.
func (n Negotiator) Clamp(d float64) float64 {
	if math.IsNaN(d) {
		return MinDuration
	}
	return math.Min(math.Max(d, MinDuration), n.max)
}

// InRange reports whether d needs no clamping.
func (n Negotiator) InRange(d float64) bool {
	return !math.IsNaN(d) && d >= MinDuration && d <= n.max
}

// Proposal is an uncommitted duration edit.
type Proposal struct {
	// Text is the user input, when the proposal came from text.
	Text string `json:"text,omitempty"`
	// Raw is the number as entered. NaN when Parsed is false.
	Raw float64 `json:"-"`
	// Sanitized is Raw clamped into range.
	Sanitized float64 `json:"sanitized"`
	// Valid is false when Raw had to be clamped; callers use it to
	// disable submission.
	Valid bool `json:"valid"`
	// Parsed is false when no number could be read from the input.
	Parsed bool `json:"parsed"`
}

// Propose sanitises raw without committing anything.
func (n Negotiator) Propose(raw float64) Proposal {
	return Proposal{
		Raw:       raw,
		Sanitized: n.Clamp(raw),
		Valid:     n.InRange(raw),
		Parsed:    !math.IsNaN(raw),
	}
}

// ParseProposal reads user text such as "12.5" or "12,5".
func (n Negotiator) ParseProposal(text string) Proposal {
	cleaned := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	raw, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsInf(raw, 0) {
		raw = math.NaN()
	}
	p := n.Propose(raw)
	p.Text = text
	return p
}

// Commit returns the duration to store and whether it changed. An
// out-of-range proposal commits its clamped value; unparsed input never
// commits.
func (n Negotiator) Commit(current float64, p Proposal) (float64, bool) {
	if !p.Parsed {
		return current, false
	}
	next := n.Clamp(p.Sanitized)
	if next == current {
		return current, false
	}
	return next, true
}

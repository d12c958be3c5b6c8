// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package duration

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp_RangeAndIdempotence(t *testing.T) {
	n := NewNegotiator(60)
	inputs := []float64{
		math.NaN(), math.Inf(1), math.Inf(-1), -5, 0, 0.999, 1, 12.345, 59.9999, 60, 60.0001, 200, math.MaxFloat64,
	}
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		inputs = append(inputs, (rng.Float64()-0.25)*400)
	}

	for _, d := range inputs {
		c := n.Clamp(d)
		if c < 1 || c > 60 {
			t.Fatalf("Clamp(%v) = %v, outside [1, 60]", d, c)
		}
		if cc := n.Clamp(c); cc != c {
			t.Fatalf("Clamp not idempotent for %v: %v then %v", d, c, cc)
		}
	}
}

func TestNewNegotiator_DegenerateCeiling(t *testing.T) {
	n := NewNegotiator(0.5)
	assert.Equal(t, 1.0, n.Max())
	assert.Equal(t, 1.0, n.Clamp(30))
}

func TestPropose(t *testing.T) {
	n := NewNegotiator(60)

	p := n.Propose(200)
	assert.False(t, p.Valid)
	assert.True(t, p.Parsed)
	assert.Equal(t, 60.0, p.Sanitized)

	p = n.Propose(30)
	assert.True(t, p.Valid)
	assert.Equal(t, 30.0, p.Sanitized)

	p = n.Propose(0)
	assert.False(t, p.Valid)
	assert.Equal(t, 1.0, p.Sanitized)
}

func TestParseProposal(t *testing.T) {
	n := NewNegotiator(60)
	tests := []struct {
		text      string
		sanitized float64
		valid     bool
		parsed    bool
	}{
		{"12.5", 12.5, true, true},
		{"12,5", 12.5, true, true},
		{" 200 ", 60, false, true},
		{"-3", 1, false, true},
		{"", 1, false, false},
		{"abc", 1, false, false},
		{"Inf", 1, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			p := n.ParseProposal(tt.text)
			assert.Equal(t, tt.text, p.Text)
			assert.Equal(t, tt.sanitized, p.Sanitized)
			assert.Equal(t, tt.valid, p.Valid)
			assert.Equal(t, tt.parsed, p.Parsed)
		})
	}
}

func TestCommit(t *testing.T) {
	n := NewNegotiator(60)

	next, changed := n.Commit(12.345, n.ParseProposal("200"))
	assert.True(t, changed)
	assert.Equal(t, 60.0, next)

	next, changed = n.Commit(60, n.Propose(60))
	assert.False(t, changed, "same value is not a change")
	assert.Equal(t, 60.0, next)

	next, changed = n.Commit(12.345, n.ParseProposal("twelve"))
	assert.False(t, changed, "unparsed input never commits")
	assert.Equal(t, 12.345, next)
}

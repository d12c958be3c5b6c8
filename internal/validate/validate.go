// SPDX-License-Identifier: MIT

// Package validate collects field-level configuration errors so a bad
// config file reports every problem at once.
package validate

import (
	"fmt"
	"math"
	"net"
	"net/url"
	"slices"
	"strings"
	"time"
)

// Error is one rejected field.
type Error struct {
	Field   string
	Value   any
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// ValidationError bundles every Error found in one pass.
type ValidationError struct {
	errors []Error
}

// Errors returns the individual failures.
func (e ValidationError) Errors() []Error {
	return e.errors
}

func (e ValidationError) Error() string {
	msgs := make([]string, len(e.errors))
	for i, err := range e.errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validator accumulates failures. The zero value is not usable; call New.
type Validator struct {
	errors []Error
}

func New() *Validator {
	return &Validator{errors: []Error{}}
}

// AddError records a failure for field.
func (v *Validator) AddError(field, message string, value any) {
	v.errors = append(v.errors, Error{Field: field, Value: value, Message: message})
}

// IsValid reports whether nothing has failed yet.
func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

// Err returns nil or a ValidationError holding a copy of the failures.
func (v *Validator) Err() error {
	if v.IsValid() {
		return nil
	}
	return ValidationError{errors: slices.Clone(v.errors)}
}

// URL requires an absolute URL with a host and, when schemes is not
// empty, one of those schemes.
func (v *Validator) URL(field, value string, schemes []string) {
	if value == "" {
		v.AddError(field, "URL cannot be empty", value)
		return
	}
	u, err := url.Parse(value)
	switch {
	case err != nil:
		v.AddError(field, fmt.Sprintf("invalid URL: %v", err), value)
	case u.Host == "":
		v.AddError(field, "URL must have a host", value)
	case len(schemes) > 0 && !slices.Contains(schemes, u.Scheme):
		v.AddError(field, fmt.Sprintf("unsupported URL scheme %q (allowed: %v)", u.Scheme, schemes), value)
	}
}

// ListenAddr requires host:port; the host may be empty.
func (v *Validator) ListenAddr(field, value string) {
	_, port, err := net.SplitHostPort(value)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid listen address: %v", err), value)
		return
	}
	if port == "" {
		v.AddError(field, "listen address must include a port", value)
	}
}

// Range is inclusive.
func (v *Validator) Range(field string, value, minVal, maxVal int) {
	if value < minVal || value > maxVal {
		v.AddError(field, fmt.Sprintf("value must be between %d and %d, got %d", minVal, maxVal, value), value)
	}
}

// FloatRange is inclusive and rejects NaN and infinities.
func (v *Validator) FloatRange(field string, value, minVal, maxVal float64) {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < minVal || value > maxVal {
		v.AddError(field, fmt.Sprintf("value must be between %g and %g, got %g", minVal, maxVal, value), value)
	}
}

func (v *Validator) MinDuration(field string, d, minVal time.Duration) {
	if d < minVal {
		v.AddError(field, fmt.Sprintf("duration must be at least %s, got %s", minVal, d), d)
	}
}

// NotEmpty rejects empty and whitespace-only strings.
func (v *Validator) NotEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "value cannot be empty", value)
	}
}

func (v *Validator) OneOf(field, value string, allowed []string) {
	if !slices.Contains(allowed, value) {
		v.AddError(field, fmt.Sprintf("value must be one of %v, got %q", allowed, value), value)
	}
}

func (v *Validator) Positive(field string, value int) {
	if value <= 0 {
		v.AddError(field, fmt.Sprintf("value must be positive, got %d", value), value)
	}
}

// PositiveBytes is Positive for byte sizes.
func (v *Validator) PositiveBytes(field string, value int64) {
	if value <= 0 {
		v.AddError(field, fmt.Sprintf("size must be positive, got %d bytes", value), value)
	}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "errors"

var (
	// ErrUnknownConfigField wraps strict YAML failures caused by unknown keys.
	ErrUnknownConfigField = errors.New("unknown config field")
	// ErrInvalidConfig wraps a validate.ValidationError listing every bad field.
	ErrInvalidConfig = errors.New("invalid config")
)

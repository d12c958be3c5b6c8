// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/crazifier/internal/validate"
)

// Upper bound accepted for MaxAbsoluteDuration. The backend's grain
// opcode becomes unstable long before this.
const maxDurationCeiling = 3600.0

// Validate reports every invalid field of cfg in one error.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.URL("Backend.BaseURL", cfg.Backend.BaseURL, []string{"http", "https"})
	v.MinDuration("Backend.Timeout", cfg.Backend.Timeout, time.Second)
	v.MinDuration("Backend.StopTimeout", cfg.Backend.StopTimeout, 100*time.Millisecond)

	v.FloatRange("Session.MaxAbsoluteDuration", cfg.Session.MaxAbsoluteDuration, 1, maxDurationCeiling)
	v.Range("Session.DefaultIntensity", cfg.Session.DefaultIntensity, 1, 10)
	v.PositiveBytes("Session.MaxUploadBytes", cfg.Session.MaxUploadBytes)
	v.MinDuration("Session.CloseGrace", cfg.Session.CloseGrace, 0)

	v.ListenAddr("API.ListenAddr", cfg.API.ListenAddr)
	v.Positive("API.RateLimitRPM", cfg.API.RateLimitRPM)

	v.NotEmpty("Downloads.Dir", cfg.Downloads.Dir)

	v.OneOf("Log.Level", cfg.Log.Level, []string{"trace", "debug", "info", "warn", "error"})

	if cfg.Telemetry.Enabled {
		v.OneOf("Telemetry.Exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("Telemetry.SamplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}

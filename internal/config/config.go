// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the crazifier configuration with precedence
// ENV > File > Defaults.
package config

import "time"

// AppConfig is the effective runtime configuration.
type AppConfig struct {
	Version string

	Backend   BackendConfig
	Session   SessionConfig
	API       APIConfig
	Downloads DownloadsConfig
	Journal   JournalConfig
	Log       LogConfig
	Telemetry TelemetryConfig
}

// BackendConfig describes the remote crazifier service.
type BackendConfig struct {
	BaseURL string
	// Timeout bounds probe, play and save exchanges. Save renders
	// synchronously on the backend, so this is generous.
	Timeout time.Duration
	// StopTimeout bounds the detached best-effort stop request.
	StopTimeout time.Duration
}

// SessionConfig holds the playback session limits.
type SessionConfig struct {
	// MaxAbsoluteDuration is the global ceiling in seconds for input
	// files and render durations.
	MaxAbsoluteDuration float64
	DefaultIntensity    int
	MaxUploadBytes      int64
	// CloseGrace bounds how long teardown waits for detached stops.
	CloseGrace time.Duration
}

// APIConfig configures the local control API.
type APIConfig struct {
	ListenAddr     string
	RateLimitRPM   int
	AllowedOrigins []string
}

// DownloadsConfig configures where CLI saves land.
type DownloadsConfig struct {
	Dir string
}

// JournalConfig configures the render history database. An empty Path
// disables the journal.
type JournalConfig struct {
	Path string
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level      string
	Service    string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool
	Exporter     string // grpc|http
	Endpoint     string
	Environment  string
	SamplingRate float64
}

// Defaults.
const (
	DefaultBackendURL          = "http://localhost:8080"
	DefaultBackendTimeout      = 2 * time.Minute
	DefaultStopTimeout         = 5 * time.Second
	DefaultMaxAbsoluteDuration = 60.0
	DefaultIntensity           = 5
	DefaultMaxUploadBytes      = 200 << 20
	DefaultCloseGrace          = 2 * time.Second
	DefaultListenAddr          = ":8090"
	DefaultRateLimitRPM        = 600
	DefaultDownloadsDir        = "downloads"
	DefaultLogLevel            = "info"
	DefaultLogService          = "crazifier"
	DefaultTelemetryExporter   = "grpc"
	DefaultTelemetryEndpoint   = "localhost:4317"
)

// Default returns the configuration used when neither file nor
// environment override a value.
func Default() AppConfig {
	return AppConfig{
		Backend: BackendConfig{
			BaseURL:     DefaultBackendURL,
			Timeout:     DefaultBackendTimeout,
			StopTimeout: DefaultStopTimeout,
		},
		Session: SessionConfig{
			MaxAbsoluteDuration: DefaultMaxAbsoluteDuration,
			DefaultIntensity:    DefaultIntensity,
			MaxUploadBytes:      DefaultMaxUploadBytes,
			CloseGrace:          DefaultCloseGrace,
		},
		API: APIConfig{
			ListenAddr:     DefaultListenAddr,
			RateLimitRPM:   DefaultRateLimitRPM,
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Downloads: DownloadsConfig{Dir: DefaultDownloadsDir},
		Log: LogConfig{
			Level:      DefaultLogLevel,
			Service:    DefaultLogService,
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		Telemetry: TelemetryConfig{
			Exporter:     DefaultTelemetryExporter,
			Endpoint:     DefaultTelemetryEndpoint,
			Environment:  "development",
			SamplingRate: 1.0,
		},
	}
}

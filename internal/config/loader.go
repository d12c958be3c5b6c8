// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvBackendURL        = "CRAZIFIER_BACKEND_URL"
	EnvBackendTimeout    = "CRAZIFIER_BACKEND_TIMEOUT"
	EnvStopTimeout       = "CRAZIFIER_STOP_TIMEOUT"
	EnvMaxDuration       = "CRAZIFIER_MAX_DURATION"
	EnvDefaultIntensity  = "CRAZIFIER_DEFAULT_INTENSITY"
	EnvMaxUploadBytes    = "CRAZIFIER_MAX_UPLOAD_BYTES"
	EnvCloseGrace        = "CRAZIFIER_CLOSE_GRACE"
	EnvListenAddr        = "CRAZIFIER_LISTEN_ADDR"
	EnvRateLimitRPM      = "CRAZIFIER_RATE_LIMIT_RPM"
	EnvAllowedOrigins    = "CRAZIFIER_ALLOWED_ORIGINS"
	EnvDownloadsDir      = "CRAZIFIER_DOWNLOADS_DIR"
	EnvJournalPath       = "CRAZIFIER_JOURNAL_PATH"
	EnvLogLevel          = "CRAZIFIER_LOG_LEVEL"
	EnvLogFile           = "CRAZIFIER_LOG_FILE"
	EnvTelemetryEnabled  = "CRAZIFIER_TELEMETRY_ENABLED"
	EnvTelemetryExporter = "CRAZIFIER_TELEMETRY_EXPORTER"
	EnvTelemetryEndpoint = "CRAZIFIER_TELEMETRY_ENDPOINT"
	EnvTelemetrySampling = "CRAZIFIER_TELEMETRY_SAMPLING"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults.
// Order: defaults -> strict file parse -> env overrides -> validate.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Default()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

func mergeFileConfig(cfg *AppConfig, f *FileConfig) error {
	if f == nil {
		return nil
	}

	setString(&cfg.Backend.BaseURL, f.Backend.BaseURL)
	if err := setDuration(&cfg.Backend.Timeout, "backend.timeout", f.Backend.Timeout); err != nil {
		return err
	}
	if err := setDuration(&cfg.Backend.StopTimeout, "backend.stopTimeout", f.Backend.StopTimeout); err != nil {
		return err
	}

	setPtr(&cfg.Session.MaxAbsoluteDuration, f.Session.MaxAbsoluteDuration)
	setPtr(&cfg.Session.DefaultIntensity, f.Session.DefaultIntensity)
	setPtr(&cfg.Session.MaxUploadBytes, f.Session.MaxUploadBytes)
	if err := setDuration(&cfg.Session.CloseGrace, "session.closeGrace", f.Session.CloseGrace); err != nil {
		return err
	}

	setString(&cfg.API.ListenAddr, f.API.ListenAddr)
	setPtr(&cfg.API.RateLimitRPM, f.API.RateLimitRPM)
	if len(f.API.AllowedOrigins) > 0 {
		cfg.API.AllowedOrigins = append([]string(nil), f.API.AllowedOrigins...)
	}

	setString(&cfg.Downloads.Dir, f.Downloads.Dir)
	setString(&cfg.Journal.Path, f.Journal.Path)

	setString(&cfg.Log.Level, f.Log.Level)
	setString(&cfg.Log.Service, f.Log.Service)
	setString(&cfg.Log.File, f.Log.File)
	setPtr(&cfg.Log.MaxSizeMB, f.Log.MaxSizeMB)
	setPtr(&cfg.Log.MaxBackups, f.Log.MaxBackups)
	setPtr(&cfg.Log.MaxAgeDays, f.Log.MaxAgeDays)
	setPtr(&cfg.Log.Compress, f.Log.Compress)

	setPtr(&cfg.Telemetry.Enabled, f.Telemetry.Enabled)
	setString(&cfg.Telemetry.Exporter, f.Telemetry.Exporter)
	setString(&cfg.Telemetry.Endpoint, f.Telemetry.Endpoint)
	setString(&cfg.Telemetry.Environment, f.Telemetry.Environment)
	setPtr(&cfg.Telemetry.SamplingRate, f.Telemetry.SamplingRate)
	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.Backend.BaseURL = l.envString(EnvBackendURL, cfg.Backend.BaseURL)
	cfg.Backend.Timeout = l.envDuration(EnvBackendTimeout, cfg.Backend.Timeout)
	cfg.Backend.StopTimeout = l.envDuration(EnvStopTimeout, cfg.Backend.StopTimeout)

	cfg.Session.MaxAbsoluteDuration = l.envFloat(EnvMaxDuration, cfg.Session.MaxAbsoluteDuration)
	cfg.Session.DefaultIntensity = l.envInt(EnvDefaultIntensity, cfg.Session.DefaultIntensity)
	cfg.Session.MaxUploadBytes = int64(l.envInt(EnvMaxUploadBytes, int(cfg.Session.MaxUploadBytes)))
	cfg.Session.CloseGrace = l.envDuration(EnvCloseGrace, cfg.Session.CloseGrace)

	cfg.API.ListenAddr = l.envString(EnvListenAddr, cfg.API.ListenAddr)
	cfg.API.RateLimitRPM = l.envInt(EnvRateLimitRPM, cfg.API.RateLimitRPM)
	if origins := l.envString(EnvAllowedOrigins, ""); origins != "" {
		cfg.API.AllowedOrigins = splitList(origins)
	}

	cfg.Downloads.Dir = l.envString(EnvDownloadsDir, cfg.Downloads.Dir)
	cfg.Journal.Path = l.envString(EnvJournalPath, cfg.Journal.Path)

	cfg.Log.Level = l.envString(EnvLogLevel, cfg.Log.Level)
	cfg.Log.File = l.envString(EnvLogFile, cfg.Log.File)

	cfg.Telemetry.Enabled = l.envBool(EnvTelemetryEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(EnvTelemetryExporter, cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(EnvTelemetryEndpoint, cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(EnvTelemetrySampling, cfg.Telemetry.SamplingRate)
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setPtr[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, field, v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, v, err)
	}
	*dst = d
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

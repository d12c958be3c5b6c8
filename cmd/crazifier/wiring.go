// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/ManuGH/crazifier/internal/config"
	"github.com/ManuGH/crazifier/internal/gateway"
	"github.com/ManuGH/crazifier/internal/journal"
	xglog "github.com/ManuGH/crazifier/internal/log"
	"github.com/ManuGH/crazifier/internal/session"
	"github.com/ManuGH/crazifier/internal/telemetry"
	"github.com/ManuGH/crazifier/internal/version"
)

// EnvConfigPath names the config file when -config is not given.
const EnvConfigPath = "CRAZIFIER_CONFIG"

// appRuntime holds the components shared by every command.
type appRuntime struct {
	cfg       config.AppConfig
	telemetry *telemetry.Provider
	journal   journal.Store
	ctrl      *session.Controller
}

// bootstrap loads the configuration, reconfigures logging and builds the
// controller. extra may add controller options derived from the loaded
// configuration. The caller owns shutdown through close.
func bootstrap(ctx context.Context, configPath string, extra func(config.AppConfig) []session.Option) (*appRuntime, error) {
	xglog.Configure(xglog.Config{Level: "info", Service: config.DefaultLogService, Version: version.Version})
	logger := xglog.WithComponent("bootstrap")

	path := strings.TrimSpace(configPath)
	if path == "" {
		path = strings.TrimSpace(config.ParseString(EnvConfigPath, ""))
	}
	cfg, err := config.NewLoader(path, version.Version).Load()
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "config.load_failed").Str("config_path", path).Msg("failed to load configuration")
		return nil, fmt.Errorf("load config: %w", err)
	}

	xglog.Configure(xglog.Config{
		Level:      cfg.Log.Level,
		Service:    cfg.Log.Service,
		Version:    cfg.Version,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	source := "env+defaults"
	if path != "" {
		source = "file"
	}
	logger = xglog.WithComponent("bootstrap")
	logger.Info().
		Str(xglog.FieldEvent, "config.loaded").
		Str("source", source).
		Str(xglog.FieldBaseURL, cfg.Backend.BaseURL).
		Float64("max_duration_s", cfg.Session.MaxAbsoluteDuration).
		Msg("configuration loaded")

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Log.Service,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	store, err := journal.NewStore(cfg.Journal.Path)
	if err != nil {
		_ = tp.Shutdown(context.Background())
		return nil, fmt.Errorf("open journal: %w", err)
	}

	gw := gateway.New(cfg.Backend.BaseURL, cfg.Backend.Timeout)
	opts := []session.Option{session.WithJournal(store)}
	if extra != nil {
		opts = append(opts, extra(cfg)...)
	}
	ctrl := session.New(gw, session.Config{
		MaxAbsoluteDuration: cfg.Session.MaxAbsoluteDuration,
		DefaultIntensity:    cfg.Session.DefaultIntensity,
		StopTimeout:         cfg.Backend.StopTimeout,
		CloseGrace:          cfg.Session.CloseGrace,
	}, opts...)

	return &appRuntime{cfg: cfg, telemetry: tp, journal: store, ctrl: ctrl}, nil
}

// close tears down in dependency order: the controller first so its
// final stop and journal writes land, then storage and exporters.
func (rt *appRuntime) close() {
	logger := xglog.WithComponent("bootstrap")
	_ = rt.ctrl.Close()
	if err := rt.journal.Close(); err != nil {
		logger.Warn().Err(err).Msg("journal close failed")
	}
	if err := rt.telemetry.Shutdown(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("telemetry shutdown failed")
	}
	_ = xglog.Close()
}

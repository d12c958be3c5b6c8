// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/crazifier/internal/api"
	"github.com/ManuGH/crazifier/internal/api/middleware"
	"github.com/ManuGH/crazifier/internal/health"
	xglog "github.com/ManuGH/crazifier/internal/log"
)

const shutdownTimeout = 10 * time.Second

func runServe(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	rt, err := bootstrap(ctx, *configPath, nil)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer rt.close()

	if err := serve(ctx, rt, nil); err != nil {
		logger := xglog.WithComponent("daemon")
		logger.Error().Err(err).Msg("daemon stopped with error")
		return 1
	}
	return 0
}

// serve runs the control API until ctx is cancelled. When ready is not
// nil it receives the bound address once the listener is up.
func serve(ctx context.Context, rt *appRuntime, ready chan<- string) error {
	logger := xglog.WithComponent("daemon")
	cfg := rt.cfg

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return fmt.Errorf("startup checks: %w", err)
	}
	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewBackendChecker(cfg.Backend.BaseURL, &http.Client{Timeout: 2 * time.Second}))
	hm.RegisterChecker(health.NewDirChecker("downloads", cfg.Downloads.Dir))
	hm.RegisterChecker(health.NewFuncChecker("journal", func(ctx context.Context) error {
		_, err := rt.journal.List(ctx, 1)
		return err
	}))

	tracing := ""
	if cfg.Telemetry.Enabled {
		tracing = cfg.Log.Service
	}
	srv := api.New(api.Config{
		Stack: middleware.StackConfig{
			AllowedOrigins: cfg.API.AllowedOrigins,
			EnableMetrics:  true,
			TracingService: tracing,
			EnableLogging:  true,
			RateLimitRPM:   cfg.API.RateLimitRPM,
		},
		MaxUploadBytes: cfg.Session.MaxUploadBytes,
		Version:        cfg.Version,
		Health:         hm,
	}, rt.ctrl, rt.journal)

	ln, err := net.Listen("tcp", cfg.API.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.API.ListenAddr, err)
	}
	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Save blocks until the backend finished rendering.
		WriteTimeout: cfg.Backend.Timeout + 30*time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str(xglog.FieldEvent, "api.listening").
			Str("addr", ln.Addr().String()).
			Str(xglog.FieldBaseURL, cfg.Backend.BaseURL).
			Msg("control API listening")
		if ready != nil {
			ready <- ln.Addr().String()
		}
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Str(xglog.FieldEvent, "api.shutdown").Msg("shutting down control API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

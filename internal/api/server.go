// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the single playback session over a local HTTP
// control API.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/crazifier/internal/api/middleware"
	"github.com/ManuGH/crazifier/internal/health"
	"github.com/ManuGH/crazifier/internal/journal"
	"github.com/ManuGH/crazifier/internal/media"
	"github.com/ManuGH/crazifier/internal/session"
)

// History lists finished render jobs.
type History interface {
	List(ctx context.Context, limit int) ([]journal.Entry, error)
}

// Config configures the control API.
type Config struct {
	Stack          middleware.StackConfig
	MaxUploadBytes int64
	Version        string
	// Health serves /healthz and /readyz. A manager with only the
	// session check is created when nil.
	Health *health.Manager
}

// Server serves the control API for one controller.
type Server struct {
	cfg     Config
	ctrl    *session.Controller
	history History
	router  chi.Router
}

// New builds the router. history may be nil, in which case /api/history
// returns an empty list.
func New(cfg Config, ctrl *session.Controller, history History) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = media.DefaultMaxBytes
	}
	if cfg.Health == nil {
		cfg.Health = health.NewManager(cfg.Version)
	}
	cfg.Health.RegisterChecker(sessionChecker{ctrl: ctrl})
	s := &Server{cfg: cfg, ctrl: ctrl, history: history}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	// Probes and scrapes bypass the stack.
	r.Get("/healthz", s.cfg.Health.ServeHealth)
	r.Get("/readyz", s.cfg.Health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		middleware.ApplyStack(r, s.cfg.Stack)

		r.Route("/api/session", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Post("/file", s.handleSelectFile)
			r.Put("/duration", s.handleSetDuration)
			r.Put("/intensity", s.handleSetIntensity)
			r.Put("/output", s.handleSetOutput)
			r.Post("/play", s.handlePlay)
			r.Post("/save", s.handleSave)
			r.Post("/stop", s.handleStop)
		})
		r.Get("/api/history", s.handleHistory)
	})
	return r
}

// sessionChecker is unhealthy once the controller has been closed.
type sessionChecker struct {
	ctrl *session.Controller
}

func (sessionChecker) Name() string {
	return "session"
}

func (c sessionChecker) Check(context.Context) health.CheckResult {
	if c.ctrl.Closed() {
		return health.CheckResult{Status: health.StatusUnhealthy, Error: session.ErrClosed.Error()}
	}
	snap := c.ctrl.Snapshot()
	return health.CheckResult{Status: health.StatusHealthy, Message: string(snap.Status)}
}

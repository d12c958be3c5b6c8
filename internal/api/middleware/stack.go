// SPDX-License-Identifier: MIT

// Package middleware provides the HTTP ingress stack of the control API.
package middleware

import (
	"github.com/go-chi/chi/v5"

	xglog "github.com/ManuGH/crazifier/internal/log"
)

// StackConfig configures the ingress middleware stack.
type StackConfig struct {
	AllowedOrigins []string

	EnableMetrics  bool
	TracingService string // empty disables tracing
	EnableLogging  bool

	// RateLimitRPM is the per-client request budget per minute; zero
	// disables rate limiting.
	RateLimitRPM int
}

// NewRouter constructs a chi router with the middleware stack applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack applies the middleware stack to r.
func ApplyStack(r chi.Router, cfg StackConfig) {
	// 1. Recoverer (outermost safety net)
	r.Use(Recoverer)
	// 2. RequestID (correlation early)
	r.Use(RequestID)
	// 3. CORS (so OPTIONS and browser clients behave)
	r.Use(CORS(cfg.AllowedOrigins))
	// 4. Cross-origin writes
	r.Use(CSRFProtection(cfg.AllowedOrigins))
	// 5. Metrics
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	// 6. Tracing
	if cfg.TracingService != "" {
		r.Use(OTelHTTP(cfg.TracingService))
	}
	// 7. Logging (wraps handlers, captures full latency)
	if cfg.EnableLogging {
		r.Use(xglog.Middleware())
	}
	// 8. Rate limit
	if cfg.RateLimitRPM > 0 {
		r.Use(APIRateLimit(cfg.RateLimitRPM))
	}
}

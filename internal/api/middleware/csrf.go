// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// CSRFProtection rejects state-changing browser requests from origins
// that are neither allowed nor the API's own. Requests without Origin or
// Referer come from non-browser clients such as the CLI and pass.
func CSRFProtection(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := originSet(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			origin := requestOrigin(r)
			if origin != "" && !allowed["*"] && !allowed[origin] && !isSameOrigin(origin, r) {
				http.Error(w, "Forbidden: Cross-origin request not allowed", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestOrigin prefers the Origin header and falls back to Referer.
func requestOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return strings.TrimSuffix(origin, "/")
	}
	referer := r.Header.Get("Referer")
	if referer == "" {
		return ""
	}
	u, err := url.Parse(referer)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func isSameOrigin(origin string, r *http.Request) bool {
	if r.Host == "" {
		return false
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return origin == scheme+"://"+r.Host
}

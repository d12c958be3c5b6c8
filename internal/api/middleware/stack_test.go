// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(origins []string) http.Handler {
	r := NewRouter(StackConfig{AllowedOrigins: origins})
	r.Post("/mutate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	return r
}

func TestStack_AllowsClientsWithoutOrigin(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(nil).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/mutate", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}

func TestStack_BlocksCrossOriginWrites(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/mutate", nil)
	req.Host = "localhost:8090"
	req.Header.Set("Origin", "http://evil.example")
	w := httptest.NewRecorder()
	newTestRouter(nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStack_AllowsSameOriginAndConfigured(t *testing.T) {
	tests := []struct {
		name   string
		origin string
	}{
		{"same origin", "http://localhost:8090"},
		{"configured", "http://ui.local"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mutate", nil)
			req.Host = "localhost:8090"
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			newTestRouter([]string{"http://ui.local"}).ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestStack_PreflightExposesDisposition(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/mutate", nil)
	req.Header.Set("Origin", "http://ui.local")
	w := httptest.NewRecorder()
	newTestRouter([]string{"http://ui.local"}).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://ui.local", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}

func TestStack_RecoversPanics(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	w := httptest.NewRecorder()
	newTestRouter(nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "req-123")
}

func TestStack_RecoveredPanicCarriesGeneratedRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body struct {
		RequestID string `json:"requestId"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.NotEmpty(t, body.RequestID)
	assert.Equal(t, w.Header().Get(HeaderRequestID), body.RequestID)
}

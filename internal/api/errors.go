// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/crazifier/internal/log"
	"github.com/ManuGH/crazifier/internal/media"
	"github.com/ManuGH/crazifier/internal/session"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	Status    int    `json:"backendStatus,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeBadRequest writes a 400 with detail
func writeBadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Error:     "bad_request",
		Detail:    detail,
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}

// writeError maps controller and media errors to HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Detail: err.Error(), RequestID: log.RequestIDFromContext(r.Context())}
	code := http.StatusInternalServerError

	var rerr *session.RenderError
	switch {
	case errors.As(err, &rerr):
		body.Detail = rerr.Message
		body.Status = rerr.Status
		if rerr.Kind == session.ErrorBackend {
			code, body.Error = http.StatusBadGateway, "backend_error"
		} else {
			code, body.Error = http.StatusGatewayTimeout, "network_failure"
		}
	case errors.Is(err, session.ErrNotReady),
		errors.Is(err, session.ErrNotRendering),
		errors.Is(err, session.ErrBusy),
		errors.Is(err, session.ErrSuperseded):
		code, body.Error = http.StatusConflict, "conflict"
	case errors.Is(err, session.ErrInvalidIntensity):
		code, body.Error = http.StatusUnprocessableEntity, "invalid_intensity"
	case errors.Is(err, session.ErrClosed):
		code, body.Error = http.StatusServiceUnavailable, "closed"
	case errors.Is(err, media.ErrFileTooLarge):
		code, body.Error = http.StatusRequestEntityTooLarge, "file_too_large"
	case errors.Is(err, session.ErrNoFile),
		errors.Is(err, media.ErrEmptyFile),
		errors.Is(err, media.ErrMissingName):
		code, body.Error = http.StatusBadRequest, "bad_request"
	default:
		body.Error = "internal"
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Msg("unhandled error")
	}
	writeJSON(w, code, body)
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/ManuGH/crazifier/internal/duration"
	"github.com/ManuGH/crazifier/internal/gateway"
	"github.com/ManuGH/crazifier/internal/journal"
	"github.com/ManuGH/crazifier/internal/log"
	"github.com/ManuGH/crazifier/internal/media"
	"github.com/ManuGH/crazifier/internal/session"
)

const maxJSONBody = 4 << 10

type durationRequest struct {
	// Duration is either a JSON number or the raw text typed by the user.
	Duration json.RawMessage `json:"duration"`
}

type durationResponse struct {
	Proposal duration.Proposal `json:"proposal"`
	Changed  bool              `json:"changed"`
	Session  session.Snapshot  `json:"session"`
}

type intensityRequest struct {
	Level *int `json:"level"`
}

type outputRequest struct {
	Name string `json:"name"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeBadRequest(w, r, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

// handleSelectFile accepts the audio as multipart field "audioFile",
// the same field name the backend expects.
func (s *Server) handleSelectFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, media.ErrFileTooLarge)
			return
		}
		writeBadRequest(w, r, fmt.Sprintf("invalid multipart body: %v", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	part, header, err := r.FormFile(gateway.FieldAudioFile)
	if err != nil {
		writeBadRequest(w, r, fmt.Sprintf("missing %q file field", gateway.FieldAudioFile))
		return
	}
	defer func() { _ = part.Close() }()

	f, err := media.ReadFile(header.Filename, part, s.cfg.MaxUploadBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}

	snap, err := s.ctrl.SelectFile(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSetDuration(w http.ResponseWriter, r *http.Request) {
	var req durationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	raw := bytes.TrimSpace(req.Duration)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		writeBadRequest(w, r, "duration is required")
		return
	}

	var p duration.Proposal
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		p = s.ctrl.ProposeDurationText(text)
	} else {
		v, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			writeBadRequest(w, r, "duration must be a number or a string")
			return
		}
		p = s.ctrl.ProposeDuration(v)
	}

	snap, changed, err := s.ctrl.CommitDuration(p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, durationResponse{Proposal: p, Changed: changed, Session: snap})
}

func (s *Server) handleSetIntensity(w http.ResponseWriter, r *http.Request) {
	var req intensityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Level == nil {
		writeBadRequest(w, r, "level is required")
		return
	}
	snap, err := s.ctrl.SetIntensity(*req.Level)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSetOutput(w http.ResponseWriter, r *http.Request) {
	var req outputRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	snap, err := s.ctrl.SetOutputName(req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Play(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

// handleSave streams the rendered file as an attachment named after the
// session's output name.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	dl, err := s.ctrl.Save(r.Context())
	if err != nil && !(errors.Is(err, session.ErrDelivery) && dl != nil) {
		writeError(w, r, err)
		return
	}
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Warn().Err(err).Msg("serving save despite delivery failure")
	}

	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dl.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(dl.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(dl.Data)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Stop(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := journal.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeBadRequest(w, r, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if s.history == nil {
		writeJSON(w, http.StatusOK, []journal.Entry{})
		return
	}
	entries, err := s.history.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

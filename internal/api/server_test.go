// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/crazifier/internal/api/middleware"
	"github.com/ManuGH/crazifier/internal/gateway"
	"github.com/ManuGH/crazifier/internal/health"
	"github.com/ManuGH/crazifier/internal/journal"
	"github.com/ManuGH/crazifier/internal/session"
)

var wavBytes = []byte("RIFF\x24\x00\x00\x00WAVEfmt \x10\x00\x00\x00\x01\x00\x01\x00\x44\xac\x00\x00\x88\x58\x01\x00\x02\x00\x10\x00data\x00\x00\x00\x00")

type testEnv struct {
	handler http.Handler
	mock    *gateway.MockBackend
	ctrl    *session.Controller
	history *journal.MemoryStore
}

func newTestEnv(t *testing.T, maxUpload int64) *testEnv {
	t.Helper()
	mock := gateway.NewMockBackend()
	t.Cleanup(mock.Close)

	history := journal.NewMemoryStore(10)
	ctrl := session.New(gateway.New(mock.URL, 5*time.Second), session.Config{
		MaxAbsoluteDuration: 60,
		DefaultIntensity:    5,
		CloseGrace:          time.Second,
	}, session.WithJournal(history))
	t.Cleanup(func() { _ = ctrl.Close() })

	srv := New(Config{
		Stack:          middleware.StackConfig{EnableMetrics: true, RateLimitRPM: 1000},
		MaxUploadBytes: maxUpload,
		Version:        "test",
	}, ctrl, history)
	return &testEnv{handler: srv.Handler(), mock: mock, ctrl: ctrl, history: history}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) doJSON(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, path, strings.NewReader(body), "application/json")
}

func (e *testEnv) upload(t *testing.T, name string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(gateway.FieldAudioFile, name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return e.do(t, http.MethodPost, "/api/session/file", &buf, mw.FormDataContentType())
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, 0)
	w := env.do(t, http.MethodGet, "/healthz?verbose=true", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[health.HealthResponse](t, w)
	assert.Equal(t, health.StatusHealthy, body.Status)
	assert.Equal(t, "test", body.Version)
	assert.Equal(t, "idle", body.Checks["session"].Message)
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t, 0)
	w := env.do(t, http.MethodGet, "/readyz", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[health.ReadinessResponse](t, w).Ready)

	require.NoError(t, env.ctrl.Close())
	w = env.do(t, http.MethodGet, "/readyz", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode[health.ReadinessResponse](t, w)
	assert.False(t, body.Ready)
	assert.Equal(t, health.StatusUnhealthy, body.Checks["session"].Status)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, 0)
	env.do(t, http.MethodGet, "/api/session", nil, "")

	w := env.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "crazifier_session_state")
	assert.Contains(t, w.Body.String(), "crazifier_http_request_duration_seconds")
}

func TestSelectFile_ProbesAndReturnsSnapshot(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.upload(t, "loop.wav", wavBytes)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap := decode[session.Snapshot](t, w)

	assert.Equal(t, session.StatusReady, snap.Status)
	assert.Equal(t, 12.345, snap.RenderDuration)
	assert.Equal(t, "loop-crazified.wav", snap.OutputName)
	assert.Equal(t, 1, env.mock.Calls(gateway.OpProbe))
	assert.Equal(t, "loop.wav", env.mock.LastUpload(gateway.OpProbe).Filename)
}

func TestSelectFile_TooLongIsReportedInSnapshot(t *testing.T) {
	env := newTestEnv(t, 0)
	env.mock.SetDuration(75)

	w := env.upload(t, "long.wav", wavBytes)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decode[session.Snapshot](t, w)
	assert.Equal(t, session.StatusProbeError, snap.Status)
	assert.Equal(t, session.ErrorTooLong, snap.ErrorKind)

	w = env.do(t, http.MethodPost, "/api/session/play", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Zero(t, env.mock.Calls(gateway.OpPlay))
}

func TestSelectFile_Errors(t *testing.T) {
	env := newTestEnv(t, 16)

	w := env.upload(t, "big.wav", wavBytes)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = env.do(t, http.MethodPost, "/api/session/file", strings.NewReader("nope"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.upload(t, "empty.wav", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, env.mock.Calls(gateway.OpProbe))
}

func TestSetDuration(t *testing.T) {
	env := newTestEnv(t, 0)
	require.Equal(t, http.StatusOK, env.upload(t, "loop.wav", wavBytes).Code)

	w := env.doJSON(t, http.MethodPut, "/api/session/duration", `{"duration": "200"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[durationResponse](t, w)
	assert.False(t, resp.Proposal.Valid)
	assert.True(t, resp.Changed)
	assert.Equal(t, 60.0, resp.Session.RenderDuration)

	w = env.doJSON(t, http.MethodPut, "/api/session/duration", `{"duration": 7.5}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7.5, decode[durationResponse](t, w).Session.RenderDuration)

	w = env.doJSON(t, http.MethodPut, "/api/session/duration", `{"duration": "abc"}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[durationResponse](t, w)
	assert.False(t, resp.Changed)
	assert.Equal(t, 7.5, resp.Session.RenderDuration)

	w = env.doJSON(t, http.MethodPut, "/api/session/duration", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.doJSON(t, http.MethodPut, "/api/session/duration", `{"seconds": 3}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetIntensity(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.doJSON(t, http.MethodPut, "/api/session/intensity", `{"level": 7}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7, decode[session.Snapshot](t, w).Intensity)

	w = env.doJSON(t, http.MethodPut, "/api/session/intensity", `{"level": 42}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.doJSON(t, http.MethodPut, "/api/session/intensity", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlayStop(t *testing.T) {
	env := newTestEnv(t, 0)
	require.Equal(t, http.StatusOK, env.upload(t, "loop.wav", wavBytes).Code)

	w := env.do(t, http.MethodPost, "/api/session/play", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap := decode[session.Snapshot](t, w)
	assert.Equal(t, session.StatusRendering, snap.Status)
	require.NotNil(t, snap.Job)
	assert.NotNil(t, snap.Job.AutoStopAt)
	assert.Equal(t, "12.345", env.mock.LastParams(gateway.OpPlay).Get(gateway.FieldDuration))

	w = env.do(t, http.MethodPost, "/api/session/play", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code, "second play while rendering")

	w = env.do(t, http.MethodPost, "/api/session/stop", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, session.StatusReady, decode[session.Snapshot](t, w).Status)
	require.Eventually(t, func() bool { return env.mock.Calls(gateway.OpStop) == 1 }, 2*time.Second, 5*time.Millisecond)

	w = env.do(t, http.MethodPost, "/api/session/stop", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPlay_BackendConflictIsBadGateway(t *testing.T) {
	env := newTestEnv(t, 0)
	require.Equal(t, http.StatusOK, env.upload(t, "loop.wav", wavBytes).Code)
	env.mock.SetResponse(gateway.OpPlay, http.StatusConflict, "Crazification already running!")

	w := env.do(t, http.MethodPost, "/api/session/play", nil, "")
	require.Equal(t, http.StatusBadGateway, w.Code)
	body := decode[errorBody](t, w)
	assert.Equal(t, "backend_error", body.Error)
	assert.Equal(t, "Crazification already running!", body.Detail)
	assert.Equal(t, http.StatusConflict, body.Status)

	assert.Equal(t, session.StatusReady, env.ctrl.Snapshot().Status)
}

func TestSave_Attachment(t *testing.T) {
	env := newTestEnv(t, 0)
	require.Equal(t, http.StatusOK, env.upload(t, "loop.wav", wavBytes).Code)
	env.mock.SetBlob([]byte("ID3rendered"), "audio/mpeg")

	w := env.doJSON(t, http.MethodPut, "/api/session/output", `{"name": "../out.mp3"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "out.mp3", decode[session.Snapshot](t, w).OutputName)

	w = env.do(t, http.MethodPost, "/api/session/save", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=out.mp3`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "ID3rendered", w.Body.String())
	assert.Equal(t, "out.mp3", env.mock.LastParams(gateway.OpSave).Get("outputPath"))

	require.Eventually(t, func() bool {
		entries, err := env.history.List(context.Background(), 10)
		return err == nil && len(entries) == 1 && entries[0].Outcome == journal.OutcomeOK
	}, time.Second, 5*time.Millisecond)
}

func TestHistory(t *testing.T) {
	env := newTestEnv(t, 0)
	require.Equal(t, http.StatusOK, env.upload(t, "loop.wav", wavBytes).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/session/play", nil, "").Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/session/stop", nil, "").Code)

	var entries []journal.Entry
	require.Eventually(t, func() bool {
		w := env.do(t, http.MethodGet, "/api/history?limit=5", nil, "")
		if w.Code != http.StatusOK {
			return false
		}
		entries = decode[[]journal.Entry](t, w)
		return len(entries) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, journal.OutcomeStopped, entries[0].Outcome)
	assert.Equal(t, "play", entries[0].Kind)

	w := env.do(t, http.MethodGet, "/api/history?limit=-1", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClosedControllerIsUnavailable(t *testing.T) {
	env := newTestEnv(t, 0)
	require.NoError(t, env.ctrl.Close())

	w := env.doJSON(t, http.MethodPut, "/api/session/intensity", `{"level": 3}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

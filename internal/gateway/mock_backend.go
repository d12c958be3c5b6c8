// SPDX-License-Identifier: MIT

package gateway

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
)

// MockBackend is a scriptable crazifier backend for tests. It counts calls
// per operation and can hold requests open to simulate latency.
type MockBackend struct {
	*httptest.Server

	mu        sync.Mutex
	calls     map[string]int
	responses map[string]MockResponse
	gates     map[string]*Gate
	params    map[string]url.Values
	uploads   map[string]Upload
	blob      []byte
	blobType  string
}

// MockResponse overrides the reply for one operation.
type MockResponse struct {
	Status int
	Body   string
}

// Upload describes the audio part of the last multipart request.
type Upload struct {
	Filename    string
	ContentType string
	Size        int
}

// Gate holds requests for one operation until released.
type Gate struct {
	arrived chan struct{}
	release chan struct{}
	once    sync.Once
}

// Arrived receives once per request that reached the gate.
func (g *Gate) Arrived() <-chan struct{} {
	return g.arrived
}

// Release lets held and future requests through.
func (g *Gate) Release() {
	g.once.Do(func() { close(g.release) })
}

// NewMockBackend starts a backend that reports a 12.345 s duration and
// accepts every render.
func NewMockBackend() *MockBackend {
	m := &MockBackend{}
	m.resetNoLock()

	mux := http.NewServeMux()
	for _, op := range []string{OpProbe, OpPlay, OpSave, OpStop} {
		mux.HandleFunc(pathPrefix+op, m.handler(op))
	}
	m.Server = httptest.NewServer(mux)
	return m
}

// Reset restores the default script and clears counters.
func (m *MockBackend) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseGatesNoLock()
	m.resetNoLock()
}

func (m *MockBackend) resetNoLock() {
	m.calls = make(map[string]int)
	m.responses = map[string]MockResponse{
		OpProbe: {Status: http.StatusOK, Body: "12.345"},
		OpPlay:  {Status: http.StatusOK, Body: "Crazification started!"},
		OpStop:  {Status: http.StatusOK, Body: "Crazification stopped!"},
	}
	m.gates = make(map[string]*Gate)
	m.params = make(map[string]url.Values)
	m.uploads = make(map[string]Upload)
	m.blob = []byte("RIFF\x24\x00\x00\x00WAVEfmt ")
	m.blobType = "audio/wav"
}

// SetDuration scripts the probe answer.
func (m *MockBackend) SetDuration(seconds float64) {
	m.SetResponse(OpProbe, http.StatusOK, FormatDuration(seconds))
}

// SetResponse scripts status and body for op. For save a 2xx status
// still returns the configured blob.
func (m *MockBackend) SetResponse(op string, status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[op] = MockResponse{Status: status, Body: body}
}

// SetBlob scripts the save payload.
func (m *MockBackend) SetBlob(data []byte, contentType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob = append([]byte(nil), data...)
	m.blobType = contentType
}

// Hold makes requests to op wait until the returned gate is released or
// the client gives up.
func (m *MockBackend) Hold(op string) *Gate {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := &Gate{arrived: make(chan struct{}, 16), release: make(chan struct{})}
	m.gates[op] = g
	return g
}

// Calls returns how many requests op has received.
func (m *MockBackend) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// LastParams returns the form and query values of the last op request.
func (m *MockBackend) LastParams(op string) url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.params[op]
}

// LastUpload returns the audio part of the last op request.
func (m *MockBackend) LastUpload(op string) Upload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploads[op]
}

// Close releases held requests and shuts the server down.
func (m *MockBackend) Close() {
	m.mu.Lock()
	m.releaseGatesNoLock()
	m.mu.Unlock()
	m.Server.Close()
}

func (m *MockBackend) releaseGatesNoLock() {
	for _, g := range m.gates {
		g.Release()
	}
}

func (m *MockBackend) handler(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		params := url.Values{}
		for k, v := range r.URL.Query() {
			params[k] = v
		}
		var upload Upload
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			if err := r.ParseMultipartForm(64 << 20); err != nil {
				http.Error(w, fmt.Sprintf("bad multipart: %v", err), http.StatusBadRequest)
				return
			}
			for k, v := range r.MultipartForm.Value {
				params[k] = v
			}
			if fh := r.MultipartForm.File[FieldAudioFile]; len(fh) > 0 {
				upload = Upload{
					Filename:    fh[0].Filename,
					ContentType: fh[0].Header.Get("Content-Type"),
					Size:        int(fh[0].Size),
				}
			}
		} else {
			_, _ = io.Copy(io.Discard, r.Body)
		}

		m.mu.Lock()
		m.calls[op]++
		m.params[op] = params
		m.uploads[op] = upload
		gate := m.gates[op]
		resp := m.responses[op]
		blob, blobType := m.blob, m.blobType
		m.mu.Unlock()

		if gate != nil {
			select {
			case gate.arrived <- struct{}{}:
			default:
			}
			select {
			case <-gate.release:
			case <-r.Context().Done():
				return
			}
		}

		status := resp.Status
		if status == 0 {
			status = http.StatusOK
		}
		if op == OpSave && status < 300 {
			w.Header().Set("Content-Type", blobType)
			w.Header().Set("Content-Disposition", `attachment; filename="render.wav"`)
			w.WriteHeader(status)
			_, _ = w.Write(blob)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, resp.Body)
	}
}

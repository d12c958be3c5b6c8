// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/crazifier/internal/gateway"
	"github.com/ManuGH/crazifier/internal/journal"
	"github.com/ManuGH/crazifier/internal/media"
)

var wavBytes = []byte("RIFF\x24\x00\x00\x00WAVEfmt \x10\x00\x00\x00\x01\x00\x01\x00\x44\xac\x00\x00\x88\x58\x01\x00\x02\x00\x10\x00data\x00\x00\x00\x00")

// stubGateway is an in-process Gateway with scriptable results. Play can
// be held open to simulate a slow acknowledgement.
type stubGateway struct {
	mu        sync.Mutex
	durations map[string]float64
	probeErr  error
	playErr   error
	saveErr   error
	stopErr   error
	blob      *gateway.Blob
	playHold  chan struct{}
	arrived   chan string
	calls     map[string]int
	lastPlay  [2]float64
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		durations: map[string]float64{},
		blob:      &gateway.Blob{Data: []byte("rendered"), ContentType: "audio/wav", Filename: "render.wav"},
		arrived:   make(chan string, 16),
		calls:     map[string]int{},
	}
}

func (s *stubGateway) record(op string) {
	s.mu.Lock()
	s.calls[op]++
	s.mu.Unlock()
	select {
	case s.arrived <- op:
	default:
	}
}

func (s *stubGateway) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *stubGateway) setDuration(name string, d float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.durations[name] = d
}

func (s *stubGateway) holdPlay() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playHold = make(chan struct{})
	return s.playHold
}

func (s *stubGateway) ProbeDuration(_ context.Context, f *media.File) (float64, error) {
	s.record(gateway.OpProbe)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.probeErr != nil {
		return 0, s.probeErr
	}
	if d, ok := s.durations[f.Name]; ok {
		return d, nil
	}
	return 12.345, nil
}

func (s *stubGateway) Play(ctx context.Context, _ *media.File, d float64, intensity int) error {
	s.record(gateway.OpPlay)
	s.mu.Lock()
	hold := s.playHold
	s.lastPlay = [2]float64{d, float64(intensity)}
	err := s.playErr
	s.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return &gateway.Error{Sentinel: gateway.ErrCancelled, Operation: gateway.OpPlay, Err: ctx.Err()}
		}
	}
	return err
}

func (s *stubGateway) Save(_ context.Context, _ *media.File, _ float64, _ int, _ string) (*gateway.Blob, error) {
	s.record(gateway.OpSave)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	return s.blob, nil
}

func (s *stubGateway) Stop(_ context.Context) error {
	s.record(gateway.OpStop)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopErr
}

type recordingJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (r *recordingJournal) Record(_ context.Context, e journal.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *recordingJournal) outcomes() []journal.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]journal.Outcome, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Outcome)
	}
	return out
}

func testFile(t *testing.T, name string) *media.File {
	t.Helper()
	f, err := media.NewFile(name, wavBytes)
	require.NoError(t, err)
	return f
}

type harness struct {
	ctrl    *Controller
	gw      *stubGateway
	clock   *clockwork.FakeClock
	journal *recordingJournal
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		gw:      newStubGateway(),
		clock:   clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)),
		journal: &recordingJournal{},
	}
	opts = append([]Option{WithClock(h.clock), WithJournal(h.journal)}, opts...)
	h.ctrl = New(h.gw, Config{
		MaxAbsoluteDuration: 60,
		DefaultIntensity:    5,
		StopTimeout:         time.Second,
		CloseGrace:          time.Second,
	}, opts...)
	t.Cleanup(func() { _ = h.ctrl.Close() })
	return h
}

// ready selects name and requires the probe to succeed.
func (h *harness) ready(t *testing.T, name string) Snapshot {
	t.Helper()
	snap, err := h.ctrl.SelectFile(context.Background(), testFile(t, name))
	require.NoError(t, err)
	require.Equal(t, StatusReady, snap.Status, snap.LastError)
	return snap
}

func (h *harness) timerArmed() bool {
	h.ctrl.mu.Lock()
	defer h.ctrl.mu.Unlock()
	return h.ctrl.timer != nil
}

func (h *harness) waitStatus(t *testing.T, want Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.ctrl.Snapshot().Status == want
	}, 2*time.Second, 5*time.Millisecond, "status never became %s", want)
}

func (h *harness) waitCalls(t *testing.T, op string, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.gw.Calls(op) == want
	}, 2*time.Second, 5*time.Millisecond, "%s calls never reached %d", op, want)
}

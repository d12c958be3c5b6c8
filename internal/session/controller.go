// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session implements the playback session controller: the state
// machine that owns the selected file, the committed render duration,
// the single render job and the single auto-stop timer.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/ManuGH/crazifier/internal/download"
	"github.com/ManuGH/crazifier/internal/duration"
	"github.com/ManuGH/crazifier/internal/gateway"
	"github.com/ManuGH/crazifier/internal/journal"
	xglog "github.com/ManuGH/crazifier/internal/log"
	"github.com/ManuGH/crazifier/internal/media"
	"github.com/ManuGH/crazifier/internal/metrics"
)

// Intensity bounds accepted by the backend.
const (
	MinIntensity = 1
	MaxIntensity = 10
)

// Gateway is the backend used by the controller. *gateway.Client
// satisfies it.
type Gateway interface {
	ProbeDuration(ctx context.Context, f *media.File) (float64, error)
	Play(ctx context.Context, f *media.File, duration float64, intensity int) error
	Save(ctx context.Context, f *media.File, duration float64, intensity int, outputName string) (*gateway.Blob, error)
	Stop(ctx context.Context) error
}

// Journal records finished render jobs. journal.Store satisfies it.
type Journal interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Config holds the controller limits.
type Config struct {
	MaxAbsoluteDuration float64
	DefaultIntensity    int
	// StopTimeout bounds each detached stop request.
	StopTimeout time.Duration
	// CloseGrace bounds how long Close waits for detached work.
	CloseGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAbsoluteDuration <= 0 {
		c.MaxAbsoluteDuration = 60
	}
	if c.DefaultIntensity < MinIntensity || c.DefaultIntensity > MaxIntensity {
		c.DefaultIntensity = 5
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 5 * time.Second
	}
	if c.CloseGrace < 0 {
		c.CloseGrace = 0
	}
	return c
}

// Option customises a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock driving the auto-stop timer.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithSink delivers every successful save to sink.
func WithSink(sink download.Sink) Option {
	return func(c *Controller) { c.sink = sink }
}

// WithJournal records job outcomes in j.
func WithJournal(j Journal) Option {
	return func(c *Controller) { c.journal = j }
}

type renderJob struct {
	id        string
	kind      JobKind
	file      *media.File
	duration  float64
	intensity int
	output    string
	startedAt time.Time
	// stopSent is set once a backend stop went out for this job.
	stopSent bool
}

// Controller is safe for concurrent use. Network calls run without the
// lock held; their completions are applied only if the job or selection
// that issued them is still current.
type Controller struct {
	gw      Gateway
	probe   *duration.Probe
	neg     duration.Negotiator
	clock   clockwork.Clock
	cfg     Config
	sink    download.Sink
	journal Journal
	id      string
	logger  zerolog.Logger

	mu sync.Mutex

	file       *media.File
	probed     float64
	hasProbe   bool
	requested  float64
	render     float64
	intensity  int
	status     Status
	outputName string
	lastErr    string
	errKind    ErrorKind

	// epoch changes on every selection and on Close; probe results
	// carrying an older epoch are dropped.
	epoch uint64

	job        *renderJob
	timer      clockwork.Timer
	timerToken uint64
	autoStopAt time.Time

	// pendingStops counts detached stops in flight; stopsIdle is closed
	// whenever it drops to zero.
	pendingStops int
	stopsIdle    chan struct{}

	tasks  conc.WaitGroup
	closed bool

	subs   map[int]chan Snapshot
	nextID int
}

// New creates a controller in the idle state.
func New(gw Gateway, cfg Config, opts ...Option) *Controller {
	cfg = cfg.withDefaults()
	c := &Controller{
		gw:        gw,
		probe:     duration.NewProbe(gw, cfg.MaxAbsoluteDuration),
		neg:       duration.NewNegotiator(cfg.MaxAbsoluteDuration),
		clock:     clockwork.NewRealClock(),
		cfg:       cfg,
		id:        uuid.NewString(),
		intensity: cfg.DefaultIntensity,
		status:    StatusIdle,
		subs:      make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = xglog.WithComponent("session").With().Str(xglog.FieldSessionID, c.id).Logger()
	metrics.SetSessionState(string(c.status))
	metrics.SetAutoStopArmed(false)
	return c
}

// ID identifies this controller in logs and the journal.
func (c *Controller) ID() string {
	return c.id
}

// Negotiator exposes the duration rules in use.
func (c *Controller) Negotiator() duration.Negotiator {
	return c.neg
}

// SelectFile replaces the current file and probes it. A render in flight
// is abandoned: its timer is cancelled and one best-effort stop is sent
// before the probe starts. The returned snapshot reflects the probe
// outcome; probe failures are reported through Status and LastError.
func (c *Controller) SelectFile(ctx context.Context, f *media.File) (Snapshot, error) {
	if f == nil {
		return Snapshot{}, ErrNoFile
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	wasRendering := c.status == StatusRendering
	abandoned := c.clearPendingWork(journal.OutcomeSuperseded, "file replaced")
	if wasRendering {
		c.stopJob(abandoned, "reselect")
	}

	c.epoch++
	epoch := c.epoch
	c.file = f
	c.probed, c.hasProbe = 0, false
	c.requested, c.render = 0, 0
	c.outputName = media.DefaultOutputName(f.Name)
	c.lastErr, c.errKind = "", ErrorNone
	c.setStatus(StatusProbing)
	c.mu.Unlock()

	c.logger.Info().
		Str(xglog.FieldEvent, "session.file_selected").
		Str(xglog.FieldFile, f.Name).
		Int("bytes", f.Size()).
		Str("content_type", f.ContentType).
		Msg("file selected")

	res := c.probe.Probe(xglog.ContextWithSessionID(ctx, c.id), f)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Snapshot{}, ErrClosed
	}
	if c.epoch != epoch {
		return c.snapshotLocked(), ErrSuperseded
	}

	switch res.Kind {
	case duration.Valid:
		c.probed, c.hasProbe = res.Duration, true
		c.render = c.neg.Clamp(res.Duration)
		c.requested = c.render
		c.setStatus(StatusReady)
	case duration.TooLong:
		c.probed, c.hasProbe = res.Duration, true
		c.fail(probeErrorKind(res.Kind), res.Message())
		c.setStatus(StatusProbeError)
	default:
		c.fail(probeErrorKind(res.Kind), res.Message())
		c.setStatus(StatusProbeError)
	}
	return c.snapshotLocked(), nil
}

// Play starts live playback. On acknowledgement the auto-stop timer is
// armed for the render duration; when it fires the session returns to
// ready without contacting the backend.
func (c *Controller) Play(ctx context.Context) error {
	job, err := c.startJob(JobPlay)
	if err != nil {
		return err
	}
	logger := c.jobLogger(job)

	if err := c.awaitStops(ctx, job); err != nil {
		return err
	}

	err = c.gw.Play(xglog.ContextWithJobID(ctx, job.id), job.file, job.duration, job.intensity)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.job != job {
		if err == nil && !job.stopSent && c.job == nil && !c.closed {
			// Acknowledged after the session moved on without stopping it
			// and nothing else is rendering: the backend may be playing an
			// orphan.
			c.dispatchStop("orphan")
		}
		logger.Info().Err(err).Msg("play completion discarded")
		return ErrSuperseded
	}

	if err != nil {
		rerr := newRenderError(JobPlay, err)
		if errors.Is(err, gateway.ErrCancelled) {
			// The request may have reached the backend before the caller gave up.
			c.stopJob(job, "cancelled")
		}
		c.clearPendingWork(journal.OutcomeFailed, rerr.Message)
		c.fail(rerr.Kind, rerr.Message)
		c.setStatus(StatusReady)
		logger.Warn().Err(err).Msg("play rejected")
		return rerr
	}

	c.armTimer(job)
	logger.Info().
		Str(xglog.FieldEvent, "session.play_started").
		Time("auto_stop_at", c.autoStopAt).
		Msg("playback acknowledged")
	c.publish()
	return nil
}

// Save renders the file and returns it as a download named after the
// current output name. When a sink is configured the download is also
// delivered there; a delivery failure is returned wrapping ErrDelivery
// together with the download.
func (c *Controller) Save(ctx context.Context) (*download.Download, error) {
	job, err := c.startJob(JobSave)
	if err != nil {
		return nil, err
	}
	logger := c.jobLogger(job)

	if err := c.awaitStops(ctx, job); err != nil {
		return nil, err
	}

	blob, err := c.gw.Save(xglog.ContextWithJobID(ctx, job.id), job.file, job.duration, job.intensity, job.output)

	c.mu.Lock()
	if c.job != job {
		c.mu.Unlock()
		logger.Info().Err(err).Msg("save completion discarded")
		return nil, ErrSuperseded
	}
	if err != nil {
		rerr := newRenderError(JobSave, err)
		c.clearPendingWork(journal.OutcomeFailed, rerr.Message)
		c.fail(rerr.Kind, rerr.Message)
		c.setStatus(StatusReady)
		c.mu.Unlock()
		logger.Warn().Err(err).Msg("save rejected")
		return nil, rerr
	}
	c.clearPendingWork(journal.OutcomeOK, "")
	c.setStatus(StatusReady)
	sink := c.sink
	c.mu.Unlock()

	dl := &download.Download{
		Name:        job.output,
		ContentType: contentTypeFor(job.output, blob.ContentType),
		Data:        blob.Data,
	}
	logger.Info().
		Str(xglog.FieldEvent, "session.save_completed").
		Int("bytes", len(dl.Data)).
		Msg("render saved")

	if sink != nil {
		loc, err := sink.Deliver(ctx, *dl)
		if err != nil {
			logger.Error().Err(err).Msg("download delivery failed")
			return dl, fmt.Errorf("%w: %v", ErrDelivery, err)
		}
		dl.Location = loc
	}
	return dl, nil
}

// Stop ends the current render. The backend stop is sent in the
// background and the session is ready again immediately.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.status != StatusRendering {
		return ErrNotRendering
	}

	stopped := c.clearPendingWork(journal.OutcomeStopped, "")
	c.setStatus(StatusStopping)
	c.stopJob(stopped, "user")
	c.setStatus(StatusReady)

	logger := xglog.WithContext(ctx, c.logger)
	logger.Info().
		Str(xglog.FieldEvent, "session.stopped").
		Msg("render stopped by user")
	return nil
}

// Close tears the session down. If a file is loaded a best-effort stop
// is sent regardless of state. Close waits up to the configured grace
// period for detached work and is safe to call more than once.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	closing := c.clearPendingWork(journal.OutcomeStopped, "session closed")
	if c.file != nil {
		c.stopJob(closing, "close")
	}
	c.epoch++
	c.setStatus(StatusIdle)
	c.closed = true
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.tasks.Wait()
		close(done)
	}()

	grace := time.NewTimer(c.cfg.CloseGrace)
	defer grace.Stop()
	select {
	case <-done:
	case <-grace.C:
		c.logger.Warn().
			Dur("grace", c.cfg.CloseGrace).
			Msg("detached work still running after close grace period")
	}
	c.logger.Info().Str(xglog.FieldEvent, "session.closed").Msg("session closed")
	return nil
}

// Closed reports whether Close has been called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// SetIntensity changes the crazify level used by the next render.
func (c *Controller) SetIntensity(level int) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Snapshot{}, ErrClosed
	}
	if level < MinIntensity || level > MaxIntensity {
		return c.snapshotLocked(), ErrInvalidIntensity
	}
	if c.status == StatusRendering {
		return c.snapshotLocked(), ErrBusy
	}
	if c.intensity != level {
		c.intensity = level
		c.publish()
	}
	return c.snapshotLocked(), nil
}

// ProposeDuration sanitises a duration edit without touching the session.
func (c *Controller) ProposeDuration(raw float64) duration.Proposal {
	return c.neg.Propose(raw)
}

// ProposeDurationText parses user text into a proposal.
func (c *Controller) ProposeDurationText(text string) duration.Proposal {
	return c.neg.ParseProposal(text)
}

// CommitDuration stores a proposal as the render duration. It reports
// whether the value changed. Only allowed while ready.
func (c *Controller) CommitDuration(p duration.Proposal) (Snapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Snapshot{}, false, ErrClosed
	}
	if c.status != StatusReady {
		return c.snapshotLocked(), false, ErrNotReady
	}
	next, changed := c.neg.Commit(c.render, p)
	if changed {
		c.render = next
		c.requested = next
		c.logger.Info().
			Str(xglog.FieldEvent, "session.duration_committed").
			Float64(xglog.FieldDuration, next).
			Bool("clamped", !p.Valid).
			Msg("render duration committed")
		c.publish()
	}
	return c.snapshotLocked(), changed, nil
}

// SetOutputName sets the save target name, normalising its extension.
func (c *Controller) SetOutputName(name string) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Snapshot{}, ErrClosed
	}
	normalized := media.NormalizeOutputName(name)
	if normalized != c.outputName {
		c.outputName = normalized
		c.publish()
	}
	return c.snapshotLocked(), nil
}

// Snapshot returns a consistent copy of the session.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe returns a channel receiving a snapshot after every change.
// Slow subscribers only see the latest snapshot. The channel is closed
// by cancel or Close.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan Snapshot, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	ch <- c.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				close(sub)
				delete(c.subs, id)
			}
		})
	}
}

// startJob validates the render guard and moves the session to rendering.
func (c *Controller) startJob(kind JobKind) (*renderJob, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.status != StatusReady || c.file == nil || c.render <= 0 {
		return nil, ErrNotReady
	}

	c.clearPendingWork(journal.OutcomeSuperseded, "")
	job := &renderJob{
		id:        uuid.NewString(),
		kind:      kind,
		file:      c.file,
		duration:  c.render,
		intensity: c.intensity,
		output:    c.outputName,
		startedAt: c.clock.Now(),
	}
	c.job = job
	c.lastErr, c.errKind = "", ErrorNone
	c.setStatus(StatusRendering)
	return job, nil
}

// awaitStops holds a new job back until earlier stops reached the
// backend, so a late stop cannot end the new render.
func (c *Controller) awaitStops(ctx context.Context, job *renderJob) error {
	c.mu.Lock()
	idle := c.stopsIdle
	pending := c.pendingStops
	c.mu.Unlock()
	if pending == 0 || idle == nil {
		return nil
	}

	select {
	case <-idle:
	case <-ctx.Done():
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.job == job {
			c.clearPendingWork(journal.OutcomeFailed, cancelledMessage)
			c.fail(ErrorNetwork, cancelledMessage)
			c.setStatus(StatusReady)
		}
		return &RenderError{Job: job.kind, Kind: ErrorNetwork, Message: cancelledMessage, Err: ctx.Err()}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job != job {
		return ErrSuperseded
	}
	return nil
}

// clearPendingWork cancels the auto-stop timer and forgets the current
// job, recording it with outcome, and returns the forgotten job if any.
// It is the only place either is cleared. Callers hold c.mu.
func (c *Controller) clearPendingWork(outcome journal.Outcome, reason string) *renderJob {
	c.timerToken++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
		c.autoStopAt = time.Time{}
		metrics.SetAutoStopArmed(false)
	}
	job := c.job
	if job != nil {
		c.recordJob(job, outcome, reason)
		c.job = nil
	}
	return job
}

// armTimer starts the single auto-stop timer for job. Callers hold c.mu.
func (c *Controller) armTimer(job *renderJob) {
	c.timerToken++
	if c.timer != nil {
		c.timer.Stop()
	}
	token := c.timerToken
	d := time.Duration(job.duration * float64(time.Second))
	c.autoStopAt = c.clock.Now().Add(d)
	c.timer = c.clock.AfterFunc(d, func() { c.autoStop(token) })
	metrics.SetAutoStopArmed(true)
}

func (c *Controller) autoStop(token uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || token != c.timerToken || c.job == nil {
		return
	}
	job := c.clearPendingWork(journal.OutcomeAutoStopped, "")
	c.setStatus(StatusReady)
	logger := c.jobLogger(job)
	logger.Info().
		Str(xglog.FieldEvent, "session.auto_stopped").
		Msg("render duration elapsed")
}

// stopJob dispatches a stop on behalf of job, which may be nil, and
// marks the job so a late acknowledgement does not stop it again.
// Callers hold c.mu.
func (c *Controller) stopJob(job *renderJob, trigger string) {
	if job != nil {
		job.stopSent = true
	}
	c.dispatchStop(trigger)
}

// dispatchStop sends a best-effort stop on its own context so that
// cancelling the triggering request cannot abort it. Callers hold c.mu.
func (c *Controller) dispatchStop(trigger string) {
	if c.pendingStops == 0 {
		c.stopsIdle = make(chan struct{})
	}
	c.pendingStops++
	timeout := c.cfg.StopTimeout

	c.tasks.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := c.gw.Stop(xglog.ContextWithSessionID(ctx, c.id))

		result := "ok"
		if err != nil {
			result = "failed"
			c.logger.Warn().Err(err).Str("trigger", trigger).Msg("best-effort stop failed")
		}
		metrics.RecordBestEffortStop(trigger, result)

		c.mu.Lock()
		c.pendingStops--
		if c.pendingStops == 0 {
			close(c.stopsIdle)
		}
		c.mu.Unlock()
	})
}

// recordJob journals and counts a finished job. Callers hold c.mu.
func (c *Controller) recordJob(job *renderJob, outcome journal.Outcome, errText string) {
	metrics.RecordRenderJob(string(job.kind), string(outcome))
	if c.journal == nil {
		return
	}
	entry := journal.Entry{
		JobID:      job.id,
		SessionID:  c.id,
		Kind:       string(job.kind),
		File:       job.file.Name,
		Label:      job.file.Label(),
		OutputName: job.output,
		Duration:   job.duration,
		Intensity:  job.intensity,
		Outcome:    outcome,
		Error:      errText,
		StartedAt:  job.startedAt,
		FinishedAt: c.clock.Now(),
	}
	j := c.journal
	c.tasks.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.StopTimeout)
		defer cancel()
		if err := j.Record(ctx, entry); err != nil {
			c.logger.Warn().Err(err).Str(xglog.FieldJobID, entry.JobID).Msg("journal write failed")
		}
	})
}

// fail stores a user-facing error. Callers hold c.mu.
func (c *Controller) fail(kind ErrorKind, msg string) {
	c.errKind = kind
	c.lastErr = msg
}

// setStatus records a transition and notifies subscribers. Callers hold c.mu.
func (c *Controller) setStatus(next Status) {
	prev := c.status
	c.status = next
	if prev != next {
		metrics.SetSessionState(string(next))
		metrics.RecordSessionTransition(string(prev), string(next))
		c.logger.Debug().
			Str(xglog.FieldEvent, "session.transition").
			Str(xglog.FieldOldState, string(prev)).
			Str(xglog.FieldNewState, string(next)).
			Msg("session state changed")
	}
	c.publish()
}

// publish sends the current snapshot to every subscriber, replacing an
// unread one. Callers hold c.mu.
func (c *Controller) publish() {
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		SessionID:         c.id,
		Status:            c.status,
		ProbedDuration:    c.probed,
		HasProbe:          c.hasProbe,
		RequestedDuration: c.requested,
		RenderDuration:    c.render,
		MaxDuration:       c.neg.Max(),
		Intensity:         c.intensity,
		OutputName:        c.outputName,
		LastError:         c.lastErr,
		ErrorKind:         c.errKind,
	}
	if c.file != nil {
		s.File = &FileInfo{
			Name:        c.file.Name,
			Label:       c.file.Label(),
			ContentType: c.file.ContentType,
			Size:        c.file.Size(),
		}
	}
	if c.job != nil {
		info := &JobInfo{
			ID:        c.job.id,
			Kind:      c.job.kind,
			Duration:  c.job.duration,
			Intensity: c.job.intensity,
			StartedAt: c.job.startedAt,
		}
		if !c.autoStopAt.IsZero() {
			at := c.autoStopAt
			info.AutoStopAt = &at
		}
		s.Job = info
	}
	return s
}

func (c *Controller) jobLogger(job *renderJob) zerolog.Logger {
	return c.logger.With().
		Str(xglog.FieldJobID, job.id).
		Str(xglog.FieldJobKind, string(job.kind)).
		Str(xglog.FieldFile, job.file.Name).
		Float64(xglog.FieldDuration, job.duration).
		Int(xglog.FieldIntensity, job.intensity).
		Logger()
}

// contentTypeFor prefers the format selected by the output extension.
func contentTypeFor(name, fallback string) string {
	if f, ok := media.FormatFromName(name); ok {
		return f.ContentType()
	}
	if fallback != "" {
		return fallback
	}
	return "application/octet-stream"
}

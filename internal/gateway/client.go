// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package gateway is the HTTP boundary to the crazifier backend. Every
// operation is a single request/response exchange; failures are reported
// as *Error wrapping one of the package sentinels.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/crazifier/internal/log"
	"github.com/ManuGH/crazifier/internal/media"
	"github.com/ManuGH/crazifier/internal/metrics"
	"github.com/ManuGH/crazifier/internal/telemetry"
)

// Backend operations. The value is also the final path segment.
const (
	OpProbe = "getDuration"
	OpPlay  = "play"
	OpSave  = "save"
	OpStop  = "stop"
)

const (
	pathPrefix      = "/crazifier/"
	maxMessageBytes = 4 << 10
	// DefaultMaxBlobBytes bounds a rendered file returned by Save.
	DefaultMaxBlobBytes = 1 << 30
)

// Blob is an encoded audio file returned by Save.
type Blob struct {
	Data        []byte
	ContentType string
	// Filename is the name suggested by the backend's Content-Disposition, if any.
	Filename string
}

// Client talks to one crazifier backend.
type Client struct {
	base   string
	http   *http.Client
	tracer  trace.Tracer
	logger  zerolog.Logger
	maxBlob int64
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMaxBlobBytes caps the size of a Save response. Larger responses
// fail with ErrBadResponse instead of being truncated.
func WithMaxBlobBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBlob = n
		}
	}
}

// New creates a client for the backend at baseURL. timeout bounds every
// exchange; a non-positive value disables the client-side limit.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout < 0 {
		timeout = 0
	}
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tracer:  telemetry.Tracer("crazifier/gateway"),
		logger:  log.WithComponent("gateway"),
		maxBlob: DefaultMaxBlobBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalised backend URL.
func (c *Client) BaseURL() string {
	return c.base
}

// ProbeDuration uploads f and returns its playable duration in seconds as
// reported by the backend. The value is not rounded or range checked.
func (c *Client) ProbeDuration(ctx context.Context, f *media.File) (float64, error) {
	body, contentType, err := uploadForm(f, 0, 0)
	if err != nil {
		return 0, &Error{Sentinel: ErrBadResponse, Operation: OpProbe, Err: err}
	}
	resp, err := c.do(ctx, OpProbe, nil, body, contentType, f)
	if err != nil {
		return 0, err
	}
	d, err := parseDuration(resp.body)
	if err != nil {
		return 0, c.finish(resp.span, OpProbe, resp.started, &Error{
			Sentinel:  ErrBadResponse,
			Operation: OpProbe,
			Status:    resp.status,
			Message:   truncate(strings.TrimSpace(string(resp.body))),
			Err:       err,
		})
	}
	return d, c.finish(resp.span, OpProbe, resp.started, nil)
}

// Play starts live playback of a render on the backend. The call returns
// once the backend acknowledged the request, not when playback ends.
func (c *Client) Play(ctx context.Context, f *media.File, duration float64, intensity int) error {
	body, contentType, err := uploadForm(f, duration, intensity)
	if err != nil {
		return &Error{Sentinel: ErrBadResponse, Operation: OpPlay, Err: err}
	}
	resp, err := c.do(ctx, OpPlay, nil, body, contentType, f)
	if err != nil {
		return err
	}
	return c.finish(resp.span, OpPlay, resp.started, nil)
}

// Save renders f to outputName and returns the encoded result.
func (c *Client) Save(ctx context.Context, f *media.File, duration float64, intensity int, outputName string) (*Blob, error) {
	body, contentType, err := uploadForm(f, duration, intensity)
	if err != nil {
		return nil, &Error{Sentinel: ErrBadResponse, Operation: OpSave, Err: err}
	}
	query := url.Values{}
	query.Set("outputPath", outputName)

	resp, err := c.do(ctx, OpSave, query, body, contentType, f)
	if err != nil {
		return nil, err
	}
	blob := &Blob{
		Data:        resp.body,
		ContentType: resp.header.Get("Content-Type"),
		Filename:    dispositionFilename(resp.header.Get("Content-Disposition")),
	}
	if blob.ContentType == "" || strings.HasPrefix(blob.ContentType, "application/octet-stream") {
		blob.ContentType = mimetype.Detect(blob.Data).String()
	}
	return blob, c.finish(resp.span, OpSave, resp.started, nil)
}

// Stop asks the backend to end any running render. It is idempotent on
// the backend side.
func (c *Client) Stop(ctx context.Context) error {
	resp, err := c.do(ctx, OpStop, nil, nil, "", nil)
	if err != nil {
		return err
	}
	return c.finish(resp.span, OpStop, resp.started, nil)
}

type response struct {
	status  int
	header  http.Header
	body    []byte
	started time.Time
	span    trace.Span
}

// do performs one POST. On failure the returned error is final: metrics,
// logs and the span are already recorded. On success the caller must pass
// the response span to finish.
func (c *Client) do(ctx context.Context, op string, query url.Values, body *bytes.Buffer, contentType string, f *media.File) (*response, error) {
	started := time.Now()
	endpoint := c.base + pathPrefix + op
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	ctx, span := c.tracer.Start(ctx, "gateway."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.BackendAttributes(op, c.base)...))
	if f != nil {
		span.SetAttributes(telemetry.AudioAttributes(f.Name, f.Size(), 0, 0)...)
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		metrics.AddGatewayUpload(op, body.Len())
		reader = body
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return nil, c.finish(span, op, started, &Error{Sentinel: ErrNetworkFailure, Operation: op, Err: err})
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, c.finish(span, op, started, transportError(ctx, op, err))
	}
	defer func() { _ = res.Body.Close() }()
	span.SetAttributes(attribute.Int(telemetry.BackendStatusKey, res.StatusCode))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, maxMessageBytes))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = http.StatusText(res.StatusCode)
		}
		return nil, c.finish(span, op, started, &Error{
			Sentinel:  ErrBackend,
			Operation: op,
			Status:    res.StatusCode,
			Message:   truncate(msg),
		})
	}

	limit := int64(maxMessageBytes)
	if op == OpSave {
		limit = c.maxBlob
	}
	data, err := io.ReadAll(io.LimitReader(res.Body, limit+1))
	if err != nil {
		return nil, c.finish(span, op, started, transportError(ctx, op, err))
	}
	if int64(len(data)) > limit {
		return nil, c.finish(span, op, started, &Error{
			Sentinel:  ErrBadResponse,
			Operation: op,
			Status:    res.StatusCode,
			Message:   fmt.Sprintf("response exceeds %d bytes", limit),
		})
	}
	return &response{status: res.StatusCode, header: res.Header, body: data, started: started, span: span}, nil
}

func (c *Client) finish(span trace.Span, op string, started time.Time, err error) error {
	defer span.End()
	elapsed := time.Since(started)
	metrics.ObserveGatewayRequest(op, resultLabel(err), elapsed)

	if err == nil {
		c.logger.Debug().
			Str(log.FieldOperation, op).
			Dur("latency", elapsed).
			Msg("backend request completed")
		return nil
	}

	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(telemetry.ErrorAttributes(resultLabel(err))...)
	evt := c.logger.Warn()
	if op == OpStop {
		evt = c.logger.Info()
	}
	evt.Err(err).
		Str(log.FieldOperation, op).
		Str(log.FieldBaseURL, c.base).
		Dur("latency", elapsed).
		Msg("backend request failed")
	return err
}

// parseDuration accepts a bare number ("12.345") or a JSON object with a
// "duration" member.
func parseDuration(body []byte) (float64, error) {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return 0, fmt.Errorf("empty duration response")
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		var payload struct {
			Duration *float64 `json:"duration"`
		}
		if jerr := json.Unmarshal(body, &payload); jerr != nil || payload.Duration == nil {
			return 0, fmt.Errorf("unparseable duration %q", truncate(text))
		}
		v = *payload.Duration
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite duration %q", text)
	}
	return v, nil
}

func dispositionFilename(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

func truncate(s string) string {
	const max = 512
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

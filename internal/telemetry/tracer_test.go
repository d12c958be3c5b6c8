// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{
		Enabled:      false,
		ServiceName:  "crazifier",
		ExporterType: "grpc",
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if provider.tp != nil {
		t.Error("Expected noop provider (tp == nil)")
	}

	_, span := otel.Tracer("test").Start(context.Background(), "noop-check")
	if span.IsRecording() {
		t.Error("Expected noop tracer span to be non-recording")
	}
	span.End()

	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("Expected no error on noop shutdown, got: %v", err)
	}
}

func TestNewProvider_InvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "crazifier",
		ExporterType: "zipkin",
	})
	if err == nil {
		t.Fatal("Expected error for invalid exporter type")
	}
	want := "unsupported exporter type: zipkin (supported: grpc, http)"
	if err.Error() != want {
		t.Errorf("Expected error message %q, got %q", want, err.Error())
	}
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{2.0, "AlwaysOnSampler"},
		{0.0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased"},
	}
	for _, tt := range tests {
		got := samplerFor(tt.rate).Description()
		if !strings.HasPrefix(got, tt.want) {
			t.Errorf("samplerFor(%v) = %q, want prefix %q", tt.rate, got, tt.want)
		}
	}
}

func TestNilProviderShutdown(t *testing.T) {
	var p *Provider
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("nil provider shutdown: %v", err)
	}
}

func TestAudioAttributesOmitZeroValues(t *testing.T) {
	attrs := AudioAttributes("song.mp3", 1024, 0, 0)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}

	attrs = AudioAttributes("song.mp3", 1024, 12.5, 7)
	found := map[attribute.Key]bool{}
	for _, a := range attrs {
		found[a.Key] = true
	}
	for _, k := range []attribute.Key{AudioFileKey, AudioBytesKey, AudioDurationKey, AudioIntensityKey} {
		if !found[k] {
			t.Errorf("missing attribute %s", k)
		}
	}
}

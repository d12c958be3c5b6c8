// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span attribute keys.
const (
	BackendOperationKey = "backend.operation"
	BackendStatusKey    = "backend.status_code"
	BackendURLKey       = "backend.url"

	AudioFileKey      = "audio.file"
	AudioBytesKey     = "audio.bytes"
	AudioDurationKey  = "audio.duration_s"
	AudioIntensityKey = "audio.intensity"
	AudioOutputKey    = "audio.output_name"

	SessionStateKey = "session.state"
	JobIDKey        = "job.id"
	JobKindKey      = "job.kind"

	ErrorTypeKey = "error.type"
)

// BackendAttributes describes one backend exchange.
func BackendAttributes(operation, url string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(BackendOperationKey, operation),
		attribute.String(BackendURLKey, url),
	}
}

// AudioAttributes describes an uploaded file and render parameters.
// Zero duration and intensity are omitted so probe spans stay small.
func AudioAttributes(file string, size int, duration float64, intensity int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AudioFileKey, file),
		attribute.Int(AudioBytesKey, size),
	}
	if duration > 0 {
		attrs = append(attrs, attribute.Float64(AudioDurationKey, duration))
	}
	if intensity > 0 {
		attrs = append(attrs, attribute.Int(AudioIntensityKey, intensity))
	}
	return attrs
}

// JobAttributes identifies a render job.
func JobAttributes(id, kind string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobIDKey, id),
		attribute.String(JobKindKey, kind),
	}
}

// ErrorAttributes classifies a failure by its type label.
func ErrorAttributes(errType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool("error", true),
		attribute.String(ErrorTypeKey, errType),
	}
}

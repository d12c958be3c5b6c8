// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"path/filepath"
	"strings"
)

// Format is an encoded audio format the backend can write.
type Format string

const (
	FormatMP3  Format = "mp3"
	FormatWAV  Format = "wav"
	FormatAIFF Format = "aiff"
)

const (
	outputSuffix      = "-crazified"
	defaultOutputBase = "crazified"
	defaultExtension  = ".wav"
)

var extensions = map[string]Format{
	".mp3":  FormatMP3,
	".wav":  FormatWAV,
	".aiff": FormatAIFF,
	".aif":  FormatAIFF,
}

// FormatFromName returns the output format selected by name's extension.
func FormatFromName(name string) (Format, bool) {
	f, ok := extensions[strings.ToLower(filepath.Ext(name))]
	return f, ok
}

// ContentType maps a format to its MIME type.
func (f Format) ContentType() string {
	switch f {
	case FormatMP3:
		return "audio/mpeg"
	case FormatWAV:
		return "audio/wav"
	case FormatAIFF:
		return "audio/aiff"
	default:
		return "application/octet-stream"
	}
}

// DefaultOutputName derives "<base>-crazified.wav" from the input file name.
func DefaultOutputName(input string) string {
	base := strings.TrimSpace(filepath.Base(input))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		return defaultOutputBase + defaultExtension
	}
	return base + outputSuffix + defaultExtension
}

// NormalizeOutputName strips directories and guarantees a supported
// extension, appending ".wav" when the name has none the backend can encode.
func NormalizeOutputName(name string) string {
	name = strings.TrimSpace(name)
	if name != "" {
		name = filepath.Base(name)
	}
	if name == "" || name == "." || name == string(filepath.Separator) {
		return defaultOutputBase + defaultExtension
	}
	if _, ok := FormatFromName(name); ok {
		return name
	}
	return name + defaultExtension
}

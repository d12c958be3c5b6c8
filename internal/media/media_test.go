// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wavHeader is the smallest RIFF/WAVE prefix mimetype recognises.
var wavHeader = []byte("RIFF\x24\x00\x00\x00WAVEfmt \x10\x00\x00\x00\x01\x00\x01\x00\x44\xac\x00\x00\x88\x58\x01\x00\x02\x00\x10\x00data\x00\x00\x00\x00")

func TestNewFile_SniffsContentType(t *testing.T) {
	f, err := NewFile("/tmp/uploads/loop.wav", wavHeader)
	require.NoError(t, err)
	assert.Equal(t, "loop.wav", f.Name)
	assert.Equal(t, "audio/wav", f.ContentType)
	assert.Equal(t, len(wavHeader), f.Size())

	got, err := io.ReadAll(f.Reader())
	require.NoError(t, err)
	assert.Equal(t, wavHeader, got)
}

func TestNewFile_Rejects(t *testing.T) {
	_, err := NewFile("", wavHeader)
	assert.ErrorIs(t, err, ErrMissingName)

	_, err = NewFile("a.wav", nil)
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestReadFile_Limit(t *testing.T) {
	_, err := ReadFile("big.wav", strings.NewReader(strings.Repeat("x", 11)), 10)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	f, err := ReadFile("ok.wav", strings.NewReader(strings.Repeat("x", 10)), 10)
	require.NoError(t, err)
	assert.Equal(t, 10, f.Size())
}

func TestOpen_FromFs(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/music/take1.aiff", []byte("FORM\x00\x00\x00\x04AIFF"), 0o644))

	f, err := Open(fsys, "/music/take1.aiff", 0)
	require.NoError(t, err)
	assert.Equal(t, "take1.aiff", f.Name)

	_, err = Open(fsys, "/music/missing.wav", 0)
	assert.Error(t, err)
}

func TestDefaultOutputName(t *testing.T) {
	tests := map[string]string{
		"song.mp3":         "song-crazified.wav",
		"/a/b/take.1.aiff": "take.1-crazified.wav",
		"noext":            "noext-crazified.wav",
		"":                 "crazified.wav",
	}
	for in, want := range tests {
		assert.Equal(t, want, DefaultOutputName(in), "input %q", in)
	}
}

func TestNormalizeOutputName(t *testing.T) {
	tests := map[string]string{
		"mix.mp3":       "mix.mp3",
		"MIX.WAV":       "MIX.WAV",
		"mix.aif":       "mix.aif",
		"mix":           "mix.wav",
		"mix.flac":      "mix.flac.wav",
		"../etc/passwd": "passwd.wav",
		"   ":           "crazified.wav",
	}
	for in, want := range tests {
		got := NormalizeOutputName(in)
		assert.Equal(t, want, got, "input %q", in)
		_, ok := FormatFromName(got)
		assert.True(t, ok, "normalized name %q must carry a supported extension", got)
	}
}

func TestFormatContentType(t *testing.T) {
	f, ok := FormatFromName("x.aiff")
	require.True(t, ok)
	assert.Equal(t, FormatAIFF, f)
	assert.Equal(t, "audio/aiff", f.ContentType())
	assert.Equal(t, "audio/mpeg", FormatMP3.ContentType())
}

func id3v1(title, artist string) []byte {
	field := func(s string, n int) []byte {
		b := make([]byte, n)
		copy(b, s)
		return b
	}
	block := []byte("TAG")
	block = append(block, field(title, 30)...)
	block = append(block, field(artist, 30)...)
	block = append(block, field("", 30)...) // album
	block = append(block, field("2024", 4)...)
	block = append(block, field("", 30)...) // comment
	block = append(block, 0xff)             // genre
	return block
}

func TestFile_Tags(t *testing.T) {
	data := append(bytes.Repeat([]byte{0xff, 0xfb, 0x90, 0x00}, 64), id3v1("Granules", "Noise Unit")...)
	f, err := NewFile("track.mp3", data)
	require.NoError(t, err)

	tags := f.Tags()
	assert.False(t, tags.Empty())
	assert.Equal(t, "Granules", tags.Title)
	assert.Equal(t, "Noise Unit", tags.Artist)
	assert.Equal(t, "Noise Unit - Granules", f.Label())
}

func TestFile_LabelFallsBackToName(t *testing.T) {
	f, err := NewFile("loop.wav", wavHeader)
	require.NoError(t, err)
	assert.True(t, f.Tags().Empty())
	assert.Equal(t, "loop.wav", f.Label())
}

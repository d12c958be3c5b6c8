// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package media holds the audio file handle shared by the session and the
// gateway, and the rules for naming rendered output files.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// DefaultMaxBytes bounds how much audio is buffered for one selection.
const DefaultMaxBytes int64 = 200 << 20

var (
	ErrEmptyFile    = errors.New("media: file is empty")
	ErrMissingName  = errors.New("media: file name is required")
	ErrFileTooLarge = errors.New("media: file exceeds upload limit")
)

// File is an in-memory audio file selected by the user. It is immutable
// after construction and may be uploaded any number of times.
type File struct {
	Name        string
	ContentType string
	data        []byte
	tags        Tags
}

// NewFile wraps raw audio bytes. The content type is sniffed from the data.
func NewFile(name string, data []byte) (*File, error) {
	name = strings.TrimSpace(filepath.Base(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, ErrMissingName
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	return &File{
		Name:        name,
		ContentType: sniff(data),
		data:        data,
		tags:        readTags(data),
	}, nil
}

// ReadFile buffers r into a File, refusing inputs larger than limit bytes.
// A non-positive limit selects DefaultMaxBytes.
func ReadFile(name string, r io.Reader, limit int64) (*File, error) {
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("media: read %s: %w", name, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrFileTooLarge, limit)
	}
	return NewFile(name, data)
}

// Open reads the file at path from fsys.
func Open(fsys afero.Fs, path string, limit int64) (*File, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("media: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return ReadFile(filepath.Base(path), f, limit)
}

// Size returns the file length in bytes.
func (f *File) Size() int {
	return len(f.data)
}

// Reader returns a fresh reader over the file contents.
func (f *File) Reader() io.Reader {
	return bytes.NewReader(f.data)
}

func sniff(data []byte) string {
	mt := mimetype.Detect(data)
	if mt == nil {
		return "application/octet-stream"
	}
	return mt.String()
}

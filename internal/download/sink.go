// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package download delivers saved renders to the user.
package download

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/spf13/afero"

	xglog "github.com/ManuGH/crazifier/internal/log"
)

// Download is a rendered file ready to hand to the user. Name carries the
// extension that selected the encoded format.
type Download struct {
	Name        string
	ContentType string
	Data        []byte
	// Location is where a Sink stored the file, if any.
	Location string
}

// Reader returns a reader over the payload.
func (d Download) Reader() io.Reader {
	return bytes.NewReader(d.Data)
}

// Sink receives completed downloads and reports where they landed.
type Sink interface {
	Deliver(ctx context.Context, d Download) (string, error)
}

// maxCollisions bounds the "name-N.ext" search.
const maxCollisions = 1000

// DirSink writes downloads atomically into a directory without replacing
// existing files.
type DirSink struct {
	dir string
	fs  afero.Fs
}

// NewDirSink returns a sink writing into dir on the OS filesystem.
func NewDirSink(dir string) *DirSink {
	return &DirSink{dir: dir, fs: afero.NewOsFs()}
}

// Dir returns the target directory.
func (s *DirSink) Dir() string {
	return s.dir
}

// Deliver writes d and returns the final path.
func (s *DirSink) Deliver(ctx context.Context, d Download) (string, error) {
	logger := xglog.WithComponentFromContext(ctx, "download")

	if err := s.fs.MkdirAll(s.dir, 0o750); err != nil {
		return "", fmt.Errorf("create downloads dir: %w", err)
	}
	path, err := s.freePath(d.Name)
	if err != nil {
		return "", err
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o640))
	if err != nil {
		return "", fmt.Errorf("create pending download: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending download")
		}
	}()

	if _, err := io.Copy(pending, d.Reader()); err != nil {
		return "", fmt.Errorf("write download: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("commit download: %w", err)
	}

	logger.Info().
		Str(xglog.FieldOutput, d.Name).
		Str("path", path).
		Int("bytes", len(d.Data)).
		Msg("download stored")
	return path, nil
}

// freePath picks dir/name, or dir/base-N.ext when that exists.
func (s *DirSink) freePath(name string) (string, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid download name %q", name)
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := filepath.Join(s.dir, name)
	for i := 1; i <= maxCollisions; i++ {
		exists, err := afero.Exists(s.fs, candidate)
		if err != nil {
			return "", fmt.Errorf("check download path: %w", err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = filepath.Join(s.dir, fmt.Sprintf("%s-%d%s", base, i, ext))
	}
	return "", fmt.Errorf("no free download name for %q", name)
}

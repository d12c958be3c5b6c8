// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"bytes"
	"strings"

	"github.com/dhowden/tag"
)

// Tags is the subset of embedded audio metadata shown in logs and the
// render journal.
type Tags struct {
	Title  string
	Artist string
	Album  string
	Format string
}

// Empty reports whether no usable tag was found.
func (t Tags) Empty() bool {
	return t.Title == "" && t.Artist == ""
}

func readTags(data []byte) Tags {
	m, err := tag.ReadFrom(bytes.NewReader(data))
	if err != nil || m == nil {
		return Tags{}
	}
	return Tags{
		Title:  strings.TrimSpace(m.Title()),
		Artist: strings.TrimSpace(m.Artist()),
		Album:  strings.TrimSpace(m.Album()),
		Format: string(m.Format()),
	}
}

// Tags returns the embedded metadata, if any.
func (f *File) Tags() Tags {
	return f.tags
}

// Label is a human readable description: "Artist - Title" when tagged,
// the file name otherwise.
func (f *File) Label() string {
	switch {
	case f.tags.Artist != "" && f.tags.Title != "":
		return f.tags.Artist + " - " + f.tags.Title
	case f.tags.Title != "":
		return f.tags.Title
	default:
		return f.Name
	}
}

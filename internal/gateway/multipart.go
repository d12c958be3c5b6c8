// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package gateway

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/ManuGH/crazifier/internal/media"
)

// Form field names expected by the backend.
const (
	FieldAudioFile = "audioFile"
	FieldDuration  = "duration"
	FieldLevel     = "crazifyLevel"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// uploadForm encodes the audio file and optional render parameters.
// A zero duration omits both parameters (probe requests).
func uploadForm(f *media.File, duration float64, intensity int) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		FieldAudioFile, quoteEscaper.Replace(f.Name)))
	h.Set("Content-Type", f.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f.Reader()); err != nil {
		return nil, "", err
	}

	if duration > 0 {
		if err := w.WriteField(FieldDuration, FormatDuration(duration)); err != nil {
			return nil, "", err
		}
		if err := w.WriteField(FieldLevel, strconv.Itoa(intensity)); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}

// FormatDuration renders seconds the way the backend parses them.
func FormatDuration(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', -1, 64)
}

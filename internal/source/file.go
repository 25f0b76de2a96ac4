package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"captionsync/internal/timeline"
)

// Format names a caption file encoding.
type Format string

const (
	FormatAuto  Format = ""
	FormatJSON3 Format = "json3"
	FormatSRT   Format = "srt"
	FormatVTT   Format = "vtt"
)

// ErrUnsupportedFormat is returned when a file's encoding cannot be detected.
var ErrUnsupportedFormat = errors.New("unsupported caption format")

// File reads caption events from a file on every Fetch, so edits on disk are
// picked up by the engine's Refresh.
type File struct {
	Path   string
	Format Format
}

// NewFile returns a File source that detects the format from the extension
// and, failing that, from the content.
func NewFile(path string) *File {
	return &File{Path: path}
}

// Fetch reads and decodes the file.
func (f *File) Fetch(ctx context.Context) ([]timeline.RawEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read captions: %w", err)
	}
	format := f.Format
	if format == FormatAuto {
		format = DetectFormat(f.Path, data)
	}
	events, err := Parse(format, data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(f.Path), err)
	}
	return events, nil
}

// Parse decodes data in the given format.
func Parse(format Format, data []byte) ([]timeline.RawEvent, error) {
	switch format {
	case FormatJSON3:
		return ParseJSON3(data)
	case FormatSRT:
		return ParseSRT(string(data))
	case FormatVTT:
		return ParseVTT(string(data))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// DetectFormat picks a format from the file extension, falling back to
// sniffing the first bytes of content.
func DetectFormat(path string, data []byte) Format {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "json3", "json":
		return FormatJSON3
	case "srt":
		return FormatSRT
	case "vtt", "webvtt":
		return FormatVTT
	}
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\uFEFF")))
	switch {
	case bytes.HasPrefix(trimmed, []byte("{")):
		return FormatJSON3
	case bytes.HasPrefix(trimmed, []byte("WEBVTT")):
		return FormatVTT
	case bytes.Contains(trimmed, []byte("-->")):
		return FormatSRT
	}
	return FormatAuto
}

package extract

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// Handle is a source of bytes to upload.
type Handle interface {
	// Name is the user-facing name of the source.
	Name() string
	// Open returns a reader over the full content.
	Open() (io.ReadCloser, error)
	// SizeHint returns the expected size in bytes, or -1 when unknown.
	SizeHint() int64
}

// FileHandle reads a file from disk.
type FileHandle struct {
	Path string
	// DisplayName overrides the base name of Path when set.
	DisplayName string
}

func (h FileHandle) Name() string {
	if h.DisplayName != "" {
		return h.DisplayName
	}
	return filepath.Base(h.Path)
}

func (h FileHandle) Open() (io.ReadCloser, error) {
	return os.Open(h.Path)
}

func (h FileHandle) SizeHint() int64 {
	info, err := os.Stat(h.Path)
	if err != nil || !info.Mode().IsRegular() {
		return -1
	}
	return info.Size()
}

// BytesHandle wraps content that is already in memory, such as links and
// notes or multipart uploads. The data is copied during extraction.
type BytesHandle struct {
	DisplayName string
	Data        []byte
	// MimeType skips sniffing when set.
	MimeType string
}

func (h BytesHandle) Name() string { return h.DisplayName }

func (h BytesHandle) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(h.Data)), nil
}

func (h BytesHandle) SizeHint() int64 { return int64(len(h.Data)) }

type mimeHinter interface {
	mimeHint() string
}

func (h BytesHandle) mimeHint() string { return h.MimeType }

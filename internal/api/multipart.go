package api

import (
	"io"
	"mime/multipart"
)

// fileHeaderHandle adapts a multipart file part to extract.Handle.
type fileHeaderHandle struct {
	header *multipart.FileHeader
}

func (h fileHeaderHandle) Name() string { return h.header.Filename }

func (h fileHeaderHandle) Open() (io.ReadCloser, error) {
	return h.header.Open()
}

func (h fileHeaderHandle) SizeHint() int64 { return h.header.Size }

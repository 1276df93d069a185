package upload

import (
	"bytes"
	"io"
)

// countingReader exposes a payload as io.ReadSeeker and publishes the current
// offset after every Read or Seek. Only the latest offset is kept when the
// observer falls behind.
type countingReader struct {
	r      *bytes.Reader
	total  int64
	events chan int64
}

func newCountingReader(payload []byte) *countingReader {
	return &countingReader{
		r:      bytes.NewReader(payload),
		total:  int64(len(payload)),
		events: make(chan int64, 1),
	}
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.publish()
	}
	return n, err
}

func (c *countingReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := c.r.Seek(offset, whence)
	if err == nil {
		c.publish()
	}
	return pos, err
}

func (c *countingReader) offset() int64 {
	return c.total - int64(c.r.Len())
}

func (c *countingReader) publish() {
	off := c.offset()
	select {
	case c.events <- off:
		return
	default:
	}
	select {
	case <-c.events:
	default:
	}
	c.events <- off
}

// done closes the event stream. Call once the transfer has returned.
func (c *countingReader) done() {
	close(c.events)
}

var _ io.ReadSeeker = (*countingReader)(nil)

package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/unicode/norm"

	"ferry/internal/logging"
	"ferry/internal/services"
)

// ErrClosed is reported for requests made after Close.
var ErrClosed = errors.New("extractor closed")

const fallbackName = "untitled"

// Result is the reply for one extraction request. Exactly one of Payload or
// Err is meaningful.
type Result struct {
	ItemID      string
	DisplayName string
	MimeType    string
	SizeBytes   int64
	Payload     []byte
	Err         error
}

type request struct {
	ctx    context.Context
	handle Handle
	itemID string
	reply  chan Result
}

// Extractor owns the worker goroutine.
type Extractor struct {
	requests chan request
	quit     chan struct{}
	stopped  chan struct{}
	once     sync.Once
	logger   *slog.Logger
}

// New starts the extraction worker.
func New(logger *slog.Logger) *Extractor {
	e := &Extractor{
		requests: make(chan request),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
		logger:   logging.NewComponentLogger(logger, "extract"),
	}
	go e.loop()
	return e
}

func (e *Extractor) loop() {
	defer close(e.stopped)
	for {
		select {
		case <-e.quit:
			return
		case req := <-e.requests:
			res := e.read(req.ctx, req.handle, req.itemID)
			req.reply <- res
		}
	}
}

// Submit queues an extraction and returns the channel its Result arrives on.
// The channel is buffered and receives exactly one value.
func (e *Extractor) Submit(ctx context.Context, handle Handle, itemID string) <-chan Result {
	reply := make(chan Result, 1)
	if ctx == nil {
		ctx = context.Background()
	}
	req := request{ctx: ctx, handle: handle, itemID: itemID, reply: reply}
	select {
	case e.requests <- req:
	case <-e.quit:
		reply <- Result{ItemID: itemID, Err: ErrClosed}
	case <-ctx.Done():
		reply <- Result{ItemID: itemID, Err: ctx.Err()}
	}
	return reply
}

// Extract submits a request and waits for its Result.
func (e *Extractor) Extract(ctx context.Context, handle Handle, itemID string) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case res := <-e.Submit(ctx, handle, itemID):
		return res
	case <-ctx.Done():
		return Result{ItemID: itemID, Err: ctx.Err()}
	}
}

// Close stops the worker. Pending Submit calls receive ErrClosed.
func (e *Extractor) Close() {
	e.once.Do(func() { close(e.quit) })
	<-e.stopped
}

func (e *Extractor) read(ctx context.Context, handle Handle, itemID string) Result {
	if handle == nil {
		return Result{ItemID: itemID, Err: services.Wrap(services.ErrValidation, "extract", "read", "nil handle", nil)}
	}
	name := DisplayName(handle.Name())
	res := Result{ItemID: itemID, DisplayName: name}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	rc, err := handle.Open()
	if err != nil {
		res.Err = services.Wrap(services.ErrExtraction, "extract", "open", name, err)
		return res
	}
	defer rc.Close()

	var buf bytes.Buffer
	if hint := handle.SizeHint(); hint > 0 {
		buf.Grow(int(hint))
	}
	if _, err := io.Copy(&buf, contextReader{ctx: ctx, r: rc}); err != nil {
		res.Err = services.Wrap(services.ErrExtraction, "extract", "read", name, err)
		return res
	}

	// The buffer is not retained after this point.
	res.Payload = buf.Bytes()
	res.SizeBytes = int64(len(res.Payload))
	res.MimeType = detectMime(handle, res.Payload)

	e.logger.Debug("extracted payload",
		logging.String(logging.FieldItemID, itemID),
		logging.String("name", name),
		logging.String("mime_type", res.MimeType),
		logging.Int64("size_bytes", res.SizeBytes),
	)
	return res
}

func detectMime(handle Handle, payload []byte) string {
	if hinter, ok := handle.(mimeHinter); ok {
		if hint := strings.TrimSpace(hinter.mimeHint()); hint != "" {
			return hint
		}
	}
	return mimetype.Detect(payload).String()
}

// DisplayName normalizes a user-facing name to NFC with path separators and
// surrounding whitespace removed.
func DisplayName(name string) string {
	name = strings.TrimSpace(norm.NFC.String(name))
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return fallbackName
	}
	return name
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, fmt.Errorf("read canceled: %w", err)
	}
	return c.r.Read(p)
}

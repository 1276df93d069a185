package recovery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"ferry/internal/limiter"
	"ferry/internal/logging"
	"ferry/internal/progress"
	"ferry/internal/queue"
	"ferry/internal/services"
	"ferry/internal/upload"
)

// Store lists durable items awaiting upload.
type Store interface {
	ListPending(ctx context.Context) ([]*queue.Item, error)
	GetByID(ctx context.Context, id string) (*queue.Item, error)
}

// Runner submits restored items.
type Runner interface {
	Reserve(id string) error
	Unreserve(id string)
	Submit(ctx context.Context, job upload.Job) (*limiter.Handle, error)
}

// Registry receives restored entries.
type Registry interface {
	AddItem(entry progress.Entry)
	RemoveItem(itemID string) bool
}

// Result summarises one restore pass.
type Result struct {
	SessionID  string    `json:"session_id"`
	Identity   string    `json:"identity"`
	Pending    int       `json:"pending"`
	Submitted  int       `json:"submitted"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Canceled   int       `json:"canceled"`
	Skipped    int       `json:"skipped"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`
}

// Status reports the coordinator's session state.
type Status struct {
	Identity  string `json:"identity,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Ready     bool   `json:"ready"`
	Attempted bool   `json:"attempted"`
	Running   bool   `json:"running"`
}

// Coordinator owns the restore-once guard for a session.
type Coordinator struct {
	store    Store
	runner   Runner
	registry Registry
	logger   *slog.Logger

	mu        sync.Mutex
	identity  string
	sessionID string
	ready     bool
	attempted bool
	running   chan struct{}
	last      *Result
	onFinish  func(context.Context, Result)
}

// New builds a coordinator with no identity and readiness off.
func New(store Store, runner Runner, registry Registry, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:    store,
		runner:   runner,
		registry: registry,
		logger:   logging.NewComponentLogger(logger, "recovery"),
	}
}

// OnFinish registers fn to run at the end of every pass, on the pass
// goroutine. Wait returns only after fn has returned.
func (c *Coordinator) OnFinish(fn func(context.Context, Result)) {
	c.mu.Lock()
	c.onFinish = fn
	c.mu.Unlock()
}

// SetIdentity records the signed-in identity. Clearing it, or switching to a
// different identity, starts a new session and re-arms the guard. ctx bounds
// any pass this call starts.
func (c *Coordinator) SetIdentity(ctx context.Context, identity string) bool {
	c.mu.Lock()
	if identity != c.identity {
		c.identity = identity
		c.attempted = false
		c.sessionID = ""
		if identity != "" {
			c.sessionID = uuid.NewString()
		}
	}
	c.mu.Unlock()
	return c.Trigger(ctx)
}

// SetReady records remote readiness. ctx bounds any pass this call starts.
func (c *Coordinator) SetReady(ctx context.Context, ready bool) bool {
	c.mu.Lock()
	c.ready = ready
	c.mu.Unlock()
	return c.Trigger(ctx)
}

// Trigger starts a restore pass when the session is signed in, the remote is
// ready, no pass has been attempted for this session, and none is running.
// It reports whether a pass was started.
func (c *Coordinator) Trigger(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == "" || !c.ready || c.attempted || c.running != nil {
		return false
	}
	c.attempted = true
	done := make(chan struct{})
	c.running = done
	go c.pass(ctx, c.sessionID, c.identity, done)
	return true
}

// Wait blocks until the running pass, if any, finishes.
func (c *Coordinator) Wait(ctx context.Context) error {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if running == nil {
		return nil
	}
	select {
	case <-running:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastResult returns the most recent finished pass.
func (c *Coordinator) LastResult() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Result{}, false
	}
	return *c.last, true
}

// Status returns a snapshot of the session state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Identity:  c.identity,
		SessionID: c.sessionID,
		Ready:     c.ready,
		Attempted: c.attempted,
		Running:   c.running != nil,
	}
}

func (c *Coordinator) pass(ctx context.Context, sessionID, identity string, done chan struct{}) {
	ctx = services.WithSessionID(ctx, sessionID)
	logger := logging.WithSession(c.logger, sessionID)
	result := Result{SessionID: sessionID, Identity: identity, StartedAt: time.Now().UTC()}

	defer func() {
		result.FinishedAt = time.Now().UTC()
		c.mu.Lock()
		onFinish := c.onFinish
		c.mu.Unlock()
		if onFinish != nil {
			onFinish(ctx, result)
		}
		c.mu.Lock()
		c.last = &result
		c.running = nil
		switched := c.sessionID != sessionID
		c.mu.Unlock()
		close(done)
		// A session switch during this pass left the guard re-armed.
		if switched && ctx.Err() == nil {
			c.Trigger(ctx)
		}
	}()

	items, err := c.store.ListPending(ctx)
	if err != nil {
		result.Error = err.Error()
		logging.ErrorWithContext(logger, "restore pass could not read queue", services.EventType(err),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the state directory and queue.db permissions"),
		)
		return
	}
	result.Pending = len(items)
	if len(items) == 0 {
		logger.Debug("no pending items to restore")
		return
	}
	logger.Info("restoring pending uploads", logging.Int("pending", len(items)))

	handles := make([]*limiter.Handle, 0, len(items))
	for i, item := range items {
		if ctx.Err() != nil {
			result.Canceled += len(items) - i
			break
		}
		handle, err := c.submit(ctx, sessionID, item)
		switch {
		case errors.Is(err, upload.ErrAlreadyActive), errors.Is(err, errNoLongerPending):
			result.Skipped++
			continue
		case err != nil && ctx.Err() != nil:
			result.Canceled++
			continue
		case err != nil:
			result.Failed++
			logging.WarnWithContext(logger, "restore submit failed", services.EventType(err),
				logging.String(logging.FieldItemID, item.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "item stays queued for the next session"),
			)
			continue
		}
		result.Submitted++
		handles = append(handles, handle)
	}

	for _, handle := range handles {
		<-handle.Done()
		err := handle.Err()
		switch {
		case err == nil:
			result.Succeeded++
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			result.Canceled++
		default:
			result.Failed++
		}
	}

	logger.Info("restore pass finished",
		logging.Int("submitted", result.Submitted),
		logging.Int("succeeded", result.Succeeded),
		logging.Int("failed", result.Failed),
		logging.Int("canceled", result.Canceled),
		logging.Int("skipped", result.Skipped),
		logging.Duration("elapsed", time.Since(result.StartedAt)),
	)
}

var errNoLongerPending = errors.New("item is no longer pending")

// submit claims item in the runner and re-reads its durable record before
// starting the upload. The list a pass works from can be stale: an item
// enqueued meanwhile may already have been uploaded and removed.
func (c *Coordinator) submit(ctx context.Context, sessionID string, item *queue.Item) (*limiter.Handle, error) {
	if err := c.runner.Reserve(item.ID); err != nil {
		return nil, err
	}
	current, err := c.store.GetByID(ctx, item.ID)
	if err == nil && (current == nil || current.Completed) {
		err = errNoLongerPending
	}
	if err != nil {
		c.runner.Unreserve(item.ID)
		return nil, err
	}

	c.registry.AddItem(progress.Entry{
		BatchID:     sessionID,
		ItemID:      current.ID,
		DisplayName: current.DisplayName,
		Kind:        progress.KindFile,
		Percent:     current.ProgressPercent,
		SizeBytes:   current.SizeBytes,
	})
	handle, err := c.runner.Submit(ctx, upload.Job{Item: current, Durable: true, Reserved: true})
	if err != nil {
		c.runner.Unreserve(current.ID)
		c.registry.RemoveItem(current.ID)
		return nil, err
	}
	return handle, nil
}

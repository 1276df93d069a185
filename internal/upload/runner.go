package upload

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"ferry/internal/limiter"
	"ferry/internal/logging"
	"ferry/internal/progress"
	"ferry/internal/queue"
	"ferry/internal/remote"
	"ferry/internal/services"
)

// ErrAlreadyActive is returned when an item is submitted while a previous
// submission of the same item has not finished.
var ErrAlreadyActive = errors.New("item is already uploading")

// Store is the durable queue surface the runner writes to.
type Store interface {
	UpdateProgress(ctx context.Context, id string, percent float64) error
	MarkCompleted(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) (bool, error)
}

// Job is one submission.
type Job struct {
	Item *queue.Item
	// Durable reports whether the item was written to the queue. Failures of
	// non-durable items are final for this process.
	Durable bool
	// Reserved means the caller already claimed Item.ID with Reserve.
	Reserved bool
}

// Options configures a Runner.
type Options struct {
	Prefix          string
	PersistInterval time.Duration
}

// Stats counts runner outcomes since construction.
type Stats struct {
	Started       int64 `json:"started"`
	Succeeded     int64 `json:"succeeded"`
	Failed        int64 `json:"failed"`
	Active        int   `json:"active"`
	BytesUploaded int64 `json:"bytes_uploaded"`
}

// Runner uploads items inside shared limiter slots.
type Runner struct {
	store    Store
	remote   remote.Store
	limiter  *limiter.Limiter
	registry *progress.Registry
	opts     Options
	logger   *slog.Logger

	mu     sync.Mutex
	active map[string]struct{}

	started   atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	bytes     atomic.Int64
}

// New constructs a runner. All arguments except logger are required.
func New(store Store, dst remote.Store, lim *limiter.Limiter, registry *progress.Registry, opts Options, logger *slog.Logger) *Runner {
	return &Runner{
		store:    store,
		remote:   dst,
		limiter:  lim,
		registry: registry,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "upload"),
		active:   make(map[string]struct{}),
	}
}

// Submit schedules job on the limiter and returns its handle. The handle's
// Err reports the upload outcome.
func (r *Runner) Submit(ctx context.Context, job Job) (*limiter.Handle, error) {
	if job.Item == nil || job.Item.ID == "" {
		return nil, services.Wrap(services.ErrValidation, "upload", "submit", "item id is required", nil)
	}
	id := job.Item.ID

	if !job.Reserved {
		if err := r.Reserve(id); err != nil {
			return nil, err
		}
	}

	handle := r.limiter.Submit(ctx, id, func(taskCtx context.Context) error {
		return r.run(taskCtx, job)
	})
	// Released once, after the outcome is settled in the store.
	go func() {
		<-handle.Done()
		r.release(id)
	}()
	return handle, nil
}

// Reserve claims id so no other submission of it can start until the claim
// is released. A claim passed to Submit via Job.Reserved is released when the
// upload finishes; otherwise release it with Unreserve.
func (r *Runner) Reserve(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.active[id]; busy {
		return ErrAlreadyActive
	}
	r.active[id] = struct{}{}
	return nil
}

// Unreserve drops a claim that was never submitted.
func (r *Runner) Unreserve(id string) {
	r.release(id)
}

// IsActive reports whether id is currently claimed or submitted.
func (r *Runner) IsActive(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[id]
	return ok
}

func (r *Runner) release(id string) {
	r.mu.Lock()
	delete(r.active, id)
	r.mu.Unlock()
}

// Stats returns a snapshot of runner counters.
func (r *Runner) Stats() Stats {
	r.mu.Lock()
	active := len(r.active)
	r.mu.Unlock()
	return Stats{
		Started:       r.started.Load(),
		Succeeded:     r.succeeded.Load(),
		Failed:        r.failed.Load(),
		Active:        active,
		BytesUploaded: r.bytes.Load(),
	}
}

func (r *Runner) run(ctx context.Context, job Job) error {
	item := job.Item
	ctx = services.WithItemID(ctx, item.ID)
	logger := logging.WithContext(ctx, r.logger)
	r.started.Add(1)
	start := time.Now()

	logger.Info("upload started",
		logging.String("name", item.DisplayName),
		logging.String("size", humanize.IBytes(uint64(len(item.Payload)))),
		logging.Float64("resume_percent", item.ProgressPercent),
		logging.Bool("durable", job.Durable),
	)

	body := newCountingReader(item.Payload)
	observed := make(chan struct{})
	go func() {
		defer close(observed)
		r.observe(ctx, logger, item, body)
	}()

	key := remote.ObjectKey(r.opts.Prefix, item.ID, item.DisplayName)
	location, err := r.remote.Put(ctx, remote.Object{
		Key:         key,
		ContentType: item.MimeType,
		Size:        body.total,
		Metadata: map[string]string{
			remote.MetadataItemID: item.ID,
			"ferry-display-name":  item.DisplayName,
		},
		Body: body,
	})
	body.done()
	<-observed

	if err != nil {
		r.fail(ctx, logger, job, err)
		return err
	}
	r.succeed(ctx, logger, item, location, time.Since(start))
	return nil
}

// observe converts reader offsets to percentages. Every observation goes to
// the registry; the durable queue is written only when the value rose and the
// persist interval has elapsed.
func (r *Runner) observe(ctx context.Context, logger *slog.Logger, item *queue.Item, body *countingReader) {
	sampler := logging.NewProgressSampler(25)
	var (
		lastPersisted = item.ProgressPercent
		lastWrite     time.Time
	)
	for offset := range body.events {
		if body.total <= 0 {
			continue
		}
		percent := float64(offset) * 100 / float64(body.total)
		r.registry.UpdateProgress(item.ID, percent)

		if percent > lastPersisted && time.Since(lastWrite) >= r.opts.PersistInterval {
			if err := r.store.UpdateProgress(ctx, item.ID, percent); err != nil {
				logger.Debug("progress not persisted", logging.Error(err))
			} else {
				lastPersisted = percent
				lastWrite = time.Now()
			}
		}
		if sampler.ShouldLog(percent, "uploading") {
			logger.Debug("upload progress", logging.Float64("percent", percent))
		}
	}
}

func (r *Runner) succeed(ctx context.Context, logger *slog.Logger, item *queue.Item, location string, elapsed time.Duration) {
	r.succeeded.Add(1)
	r.bytes.Add(int64(len(item.Payload)))

	// The object is confirmed; finish bookkeeping even if ctx was canceled meanwhile.
	storeCtx := context.WithoutCancel(ctx)
	if err := r.store.MarkCompleted(storeCtx, item.ID); err != nil {
		logging.WarnWithContext(logger, "mark completed failed", "local_store_failure",
			logging.Error(err),
			logging.String(logging.FieldImpact, "item is purged on next start"),
		)
	}
	if _, err := r.store.Remove(storeCtx, item.ID); err != nil {
		logging.WarnWithContext(logger, "remove from queue failed", "local_store_failure",
			logging.Error(err),
			logging.String(logging.FieldImpact, "item is purged on next start"),
		)
	}
	r.registry.CompleteItem(item.ID)

	logger.Info("upload complete",
		logging.String("location", location),
		logging.String("size", humanize.IBytes(uint64(len(item.Payload)))),
		logging.Duration("elapsed", elapsed),
	)
}

func (r *Runner) fail(ctx context.Context, logger *slog.Logger, job Job, err error) {
	r.failed.Add(1)
	r.registry.RemoveItem(job.Item.ID)

	impact := "item stays queued and is retried next session"
	if !job.Durable {
		impact = "item was not persisted and will not be retried"
	}
	attrs := []logging.Attr{
		logging.Error(err),
		logging.String(logging.FieldEventType, services.EventType(err)),
		logging.String(logging.FieldErrorHint, services.Hint(err)),
		logging.String(logging.FieldImpact, impact),
	}
	if ctx.Err() != nil {
		logging.WarnWithContext(logger, "upload interrupted", "canceled", attrs...)
		return
	}
	logging.ErrorWithContext(logger, "upload failed", "remote_failure", attrs...)
}

package daemon

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ferry/internal/extract"
	"ferry/internal/limiter"
	"ferry/internal/logging"
	"ferry/internal/progress"
	"ferry/internal/queue"
	"ferry/internal/services"
	"ferry/internal/upload"
)

// EnqueueOptions annotates a new upload.
type EnqueueOptions struct {
	BatchID string
	Kind    progress.Kind
}

// Enqueued describes an accepted upload.
type Enqueued struct {
	ItemID      string `json:"item_id"`
	BatchID     string `json:"batch_id,omitempty"`
	DisplayName string `json:"display_name"`
	MimeType    string `json:"mime_type"`
	SizeBytes   int64  `json:"size_bytes"`
	// Durable is false when the payload could not be written to the queue;
	// such items are attempted once and not restored after a restart.
	Durable bool `json:"durable"`

	handle *limiter.Handle
}

// Wait blocks until the upload finishes and returns its outcome.
func (e Enqueued) Wait(ctx context.Context) error {
	if e.handle == nil {
		return nil
	}
	return e.handle.Wait(ctx)
}

// Done is closed when the upload finishes.
func (e Enqueued) Done() <-chan struct{} {
	if e.handle == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return e.handle.Done()
}

// Enqueue extracts h, records it in the durable queue, and starts the upload.
// The upload runs on the daemon's lifetime rather than ctx, so it outlives the
// caller's request.
func (d *Daemon) Enqueue(ctx context.Context, h extract.Handle, opts EnqueueOptions) (Enqueued, error) {
	life, done, err := d.beginWork()
	if err != nil {
		return Enqueued{}, err
	}
	defer done()
	if h == nil {
		return Enqueued{}, services.Wrap(services.ErrValidation, "daemon", "enqueue", "handle is required", nil)
	}

	itemID := uuid.NewString()
	ctx = services.WithItemID(ctx, itemID)
	if opts.BatchID != "" {
		ctx = services.WithBatchID(ctx, opts.BatchID)
	}
	logger := logging.WithContext(ctx, d.logger)

	res := d.extractor.Extract(ctx, h, itemID)
	if res.Err != nil {
		logging.WarnWithContext(logger, "extraction failed", services.EventType(res.Err),
			logging.Error(res.Err),
			logging.String(logging.FieldErrorHint, services.Hint(res.Err)),
			logging.String(logging.FieldImpact, "item was not queued"),
		)
		return Enqueued{}, res.Err
	}

	item := &queue.Item{
		ID:          itemID,
		DisplayName: res.DisplayName,
		MimeType:    res.MimeType,
		SizeBytes:   res.SizeBytes,
		Payload:     res.Payload,
		EnqueuedAt:  time.Now().UTC(),
	}
	// Claimed before the record exists so a restore pass listing the queue
	// meanwhile treats it as active.
	if err := d.runner.Reserve(itemID); err != nil {
		return Enqueued{}, err
	}
	durable := d.persist(ctx, logger, item)

	kind := opts.Kind
	if kind == "" {
		kind = progress.KindFile
	}
	d.registry.AddItem(progress.Entry{
		BatchID:     opts.BatchID,
		ItemID:      itemID,
		DisplayName: item.DisplayName,
		Kind:        kind,
		SizeBytes:   item.SizeBytes,
		AddedAt:     item.EnqueuedAt,
	})

	uploadCtx := services.WithItemID(life, itemID)
	if opts.BatchID != "" {
		uploadCtx = services.WithBatchID(uploadCtx, opts.BatchID)
	}
	handle, err := d.runner.Submit(uploadCtx, upload.Job{Item: item, Durable: durable, Reserved: true})
	if err != nil {
		d.runner.Unreserve(itemID)
		d.registry.RemoveItem(itemID)
		return Enqueued{}, err
	}

	if !durable {
		d.watchLost(handle, item.DisplayName, logger)
	}

	logger.Info("upload queued",
		logging.String("name", item.DisplayName),
		logging.String("mime_type", item.MimeType),
		logging.Int64("size_bytes", item.SizeBytes),
		logging.Bool("durable", durable),
	)
	return Enqueued{
		ItemID:      itemID,
		BatchID:     opts.BatchID,
		DisplayName: item.DisplayName,
		MimeType:    item.MimeType,
		SizeBytes:   item.SizeBytes,
		Durable:     durable,
		handle:      handle,
	}, nil
}

// persist writes item to the queue. A failure is logged and the upload
// continues in memory without crash resilience.
func (d *Daemon) persist(ctx context.Context, logger *slog.Logger, item *queue.Item) bool {
	err := d.store.Put(ctx, item)
	if err == nil {
		return true
	}
	impact := "upload continues in memory and is lost if the process exits"
	if errors.Is(err, queue.ErrPayloadTooLarge) {
		impact = "payload exceeds queue.max_persist_mib; uploaded once and never restored"
	}
	logging.WarnWithContext(logger, "item not persisted", services.EventType(err),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, services.Hint(err)),
		logging.String(logging.FieldImpact, impact),
	)
	return false
}

// EnqueueBatch enqueues every handle under one new batch id. Handles that
// fail to enqueue are reported in the joined error; the rest proceed.
func (d *Daemon) EnqueueBatch(ctx context.Context, handles []extract.Handle, kind progress.Kind) (string, []Enqueued, error) {
	batchID := uuid.NewString()
	items := make([]Enqueued, 0, len(handles))
	var errs []error
	for _, h := range handles {
		enq, err := d.Enqueue(ctx, h, EnqueueOptions{BatchID: batchID, Kind: kind})
		if err != nil {
			if errors.Is(err, ErrNotRunning) {
				return batchID, items, err
			}
			errs = append(errs, err)
			continue
		}
		items = append(items, enq)
	}
	return batchID, items, errors.Join(errs...)
}

// Dismiss hides an entry from the progress view. Any transfer behind it keeps
// running and the durable record is untouched.
func (d *Daemon) Dismiss(itemID string) bool {
	return d.registry.RemoveItem(itemID)
}

// Summary returns the aggregate progress view.
func (d *Daemon) Summary() progress.Summary {
	return d.registry.Summary()
}

// Entries returns the progress entries in insertion order.
func (d *Daemon) Entries() []progress.Entry {
	return d.registry.Entries()
}

// BatchCounts returns per-batch totals.
func (d *Daemon) BatchCounts(batchID string) progress.BatchCount {
	return d.registry.BatchCounts(batchID)
}

// Watch subscribes to per-item progress updates.
func (d *Daemon) Watch(buffer int) (<-chan progress.Update, func()) {
	return d.registry.Watch(buffer)
}

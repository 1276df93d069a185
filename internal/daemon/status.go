package daemon

import (
	"context"

	"ferry/internal/progress"
	"ferry/internal/queue"
	"ferry/internal/recovery"
	"ferry/internal/upload"
)

// LimiterStatus reports slot usage.
type LimiterStatus struct {
	Capacity int `json:"capacity"`
	Active   int `json:"active"`
	Waiting  int `json:"waiting"`
	Peak     int `json:"peak"`
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool             `json:"running"`
	Remote       string           `json:"remote"`
	QueueDBPath  string           `json:"queue_db_path"`
	LockFilePath string           `json:"lock_file_path"`
	Queue        queue.Stats      `json:"queue"`
	QueueError   string           `json:"queue_error,omitempty"`
	Progress     progress.Summary `json:"progress"`
	Uploads      upload.Stats     `json:"uploads"`
	Limiter      LimiterStatus    `json:"limiter"`
	Session      recovery.Status  `json:"session"`
	LastRestore  *recovery.Result `json:"last_restore,omitempty"`
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		Remote:       d.remote.Name(),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		Progress:     d.registry.Summary(),
		Uploads:      d.runner.Stats(),
		Limiter: LimiterStatus{
			Capacity: d.limiter.Capacity(),
			Active:   d.limiter.Active(),
			Waiting:  d.limiter.Waiting(),
			Peak:     d.limiter.PeakActive(),
		},
		Session: d.coordinator.Status(),
	}
	if stats, err := d.store.Stats(ctx); err != nil {
		status.QueueError = err.Error()
	} else {
		status.Queue = stats
	}
	if result, ok := d.coordinator.LastResult(); ok {
		status.LastRestore = &result
	}
	return status
}

// ListPending returns durable items awaiting upload.
func (d *Daemon) ListPending(ctx context.Context) ([]*queue.Item, error) {
	return d.store.ListPending(ctx)
}

// ClearQueue removes all durable items.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	return d.store.Clear(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

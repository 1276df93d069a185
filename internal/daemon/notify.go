package daemon

import (
	"context"
	"log/slog"

	"ferry/internal/limiter"
	"ferry/internal/logging"
	"ferry/internal/notifications"
	"ferry/internal/recovery"
)

func (d *Daemon) notifyRestore(ctx context.Context, result recovery.Result) {
	// A pass cut short by shutdown is reported on the next start.
	if result.Pending == 0 || ctx.Err() != nil {
		return
	}
	d.publish(context.WithoutCancel(ctx), d.logger, notifications.EventRestoreCompleted, notifications.Payload{
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
		"canceled":  result.Canceled,
		"duration":  result.FinishedAt.Sub(result.StartedAt),
	})
}

// watchLost alerts when an upload with no durable record fails.
func (d *Daemon) watchLost(handle *limiter.Handle, name string, logger *slog.Logger) {
	d.notifyWG.Add(1)
	go func() {
		defer d.notifyWG.Done()
		<-handle.Done()
		err := handle.Err()
		if err == nil {
			return
		}
		d.publish(context.Background(), logger, notifications.EventUploadLost, notifications.Payload{
			"name":  name,
			"error": err.Error(),
		})
	}()
}

func (d *Daemon) publish(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if err := d.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logger, "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}

// TestNotification publishes a test event through the configured notifier.
func (d *Daemon) TestNotification(ctx context.Context) error {
	return d.notifier.Publish(ctx, notifications.EventTest, nil)
}

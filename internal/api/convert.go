package api

import (
	"time"

	"ferry/internal/daemon"
	"ferry/internal/progress"
	"ferry/internal/queue"
	"ferry/internal/recovery"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// FromQueueItem converts a queue record, dropping its payload.
func FromQueueItem(item *queue.Item) QueueItem {
	if item == nil {
		return QueueItem{}
	}
	return QueueItem{
		ID:              item.ID,
		DisplayName:     item.DisplayName,
		MimeType:        item.MimeType,
		SizeBytes:       item.SizeBytes,
		ProgressPercent: item.ProgressPercent,
		EnqueuedAt:      formatTime(item.EnqueuedAt),
	}
}

// FromEntry converts a progress entry.
func FromEntry(entry progress.Entry) UploadEntry {
	return UploadEntry{
		ItemID:      entry.ItemID,
		BatchID:     entry.BatchID,
		DisplayName: entry.DisplayName,
		Kind:        string(entry.Kind),
		Percent:     entry.Percent,
		SizeBytes:   entry.SizeBytes,
		Completed:   entry.Completed,
		AddedAt:     formatTime(entry.AddedAt),
	}
}

// FromSummary converts the aggregate view.
func FromSummary(summary progress.Summary) Summary {
	return Summary{
		Count:          summary.Count,
		OverallPercent: summary.OverallPercent,
		InFlight:       summary.InFlight,
	}
}

// FromUpdate converts a watcher update.
func FromUpdate(update progress.Update) ProgressEvent {
	return ProgressEvent{
		ItemID:    update.ItemID,
		Percent:   update.Percent,
		Completed: update.Completed,
		Removed:   update.Removed,
	}
}

// FromEnqueued converts an accepted upload.
func FromEnqueued(enq daemon.Enqueued) EnqueuedItem {
	return EnqueuedItem{
		ItemID:      enq.ItemID,
		DisplayName: enq.DisplayName,
		MimeType:    enq.MimeType,
		SizeBytes:   enq.SizeBytes,
		Durable:     enq.Durable,
	}
}

// FromRestoreResult converts a recovery pass result.
func FromRestoreResult(result recovery.Result) RestoreResult {
	return RestoreResult{
		SessionID:  result.SessionID,
		Pending:    result.Pending,
		Submitted:  result.Submitted,
		Succeeded:  result.Succeeded,
		Failed:     result.Failed,
		Skipped:    result.Skipped,
		StartedAt:  formatTime(result.StartedAt),
		FinishedAt: formatTime(result.FinishedAt),
		Error:      result.Error,
	}
}

// FromStatus converts daemon status.
func FromStatus(status daemon.Status) DaemonStatus {
	out := DaemonStatus{
		Running:        status.Running,
		Remote:         status.Remote,
		QueueDBPath:    status.QueueDBPath,
		LockFilePath:   status.LockFilePath,
		QueuePending:   status.Queue.Pending,
		QueueBytes:     status.Queue.PendingBytes,
		QueueError:     status.QueueError,
		Progress:       FromSummary(status.Progress),
		UploadsStarted: status.Uploads.Started,
		UploadsOK:      status.Uploads.Succeeded,
		UploadsFailed:  status.Uploads.Failed,
		BytesUploaded:  status.Uploads.BytesUploaded,
		SlotsCapacity:  status.Limiter.Capacity,
		SlotsActive:    status.Limiter.Active,
		SlotsWaiting:   status.Limiter.Waiting,
		Session: SessionStatus{
			Identity:  status.Session.Identity,
			SessionID: status.Session.SessionID,
			Ready:     status.Session.Ready,
			Attempted: status.Session.Attempted,
			Running:   status.Session.Running,
		},
	}
	if status.LastRestore != nil {
		restore := FromRestoreResult(*status.LastRestore)
		out.LastRestore = &restore
	}
	return out
}

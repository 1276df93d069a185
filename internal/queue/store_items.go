package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ferry/internal/services"
)

const itemColumns = "id, display_name, mime_type, size_bytes, payload, progress_percent, enqueued_at, completed"

// Put persists item metadata and payload, replacing any existing record with
// the same ID. The original enqueue time of a replaced record is kept.
// Items larger than the ceiling are not written and yield ErrPayloadTooLarge.
func (s *Store) Put(ctx context.Context, item *Item) error {
	if item == nil || strings.TrimSpace(item.ID) == "" {
		return services.Wrap(services.ErrValidation, "queue", "put", "item id is required", nil)
	}
	size := item.SizeBytes
	if n := int64(len(item.Payload)); n > size {
		size = n
	}
	if s.maxPersist > 0 && size > s.maxPersist {
		return fmt.Errorf("put %s (%d bytes, limit %d): %w", item.ID, size, s.maxPersist, ErrPayloadTooLarge)
	}
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now().UTC()
	}
	payload := item.Payload
	if payload == nil {
		payload = []byte{}
	}

	_, err := s.execWithRetry(ctx, `INSERT INTO queue_items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			mime_type = excluded.mime_type,
			size_bytes = excluded.size_bytes,
			payload = excluded.payload,
			progress_percent = excluded.progress_percent,
			completed = excluded.completed`,
		item.ID,
		item.DisplayName,
		nullableString(item.MimeType),
		item.SizeBytes,
		payload,
		ClampPercent(item.ProgressPercent),
		formatTime(item.EnqueuedAt),
		boolToInt(item.Completed),
	)
	if err != nil {
		return services.Wrap(services.ErrLocalStore, "queue", "put", item.ID, err)
	}
	return nil
}

// GetByID fetches an item. It returns nil without error when the item is absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Item, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", id, err)
	}
	return item, nil
}

// ListPending returns every item not yet marked completed, oldest first.
func (s *Store) ListPending(ctx context.Context) ([]*Item, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM queue_items WHERE completed = 0 ORDER BY enqueued_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateProgress records best-effort progress. The stored value only rises,
// and absent or completed items are left untouched.
func (s *Store) UpdateProgress(ctx context.Context, id string, percent float64) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE queue_items SET progress_percent = ? WHERE id = ? AND completed = 0 AND progress_percent < ?`,
		ClampPercent(percent), id, ClampPercent(percent))
	if err != nil {
		return services.Wrap(services.ErrLocalStore, "queue", "update progress", id, err)
	}
	return nil
}

// MarkCompleted flags an item as confirmed uploaded ahead of its removal.
func (s *Store) MarkCompleted(ctx context.Context, id string) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE queue_items SET completed = 1, progress_percent = 100 WHERE id = ?`, id)
	if err != nil {
		return services.Wrap(services.ErrLocalStore, "queue", "mark completed", id, err)
	}
	return nil
}

// Remove deletes an item and reports whether a row existed. Removing an
// absent item is not an error.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return false, services.Wrap(services.ErrLocalStore, "queue", "remove", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove %s: rows affected: %w", id, err)
	}
	return affected > 0, nil
}

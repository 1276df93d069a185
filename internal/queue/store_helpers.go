package queue

import (
	"database/sql"
	"errors"
	"time"
)

// storedTimeLayout is fixed width so enqueued_at sorts lexically.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		item        Item
		mimeType    sql.NullString
		payload     []byte
		enqueuedRaw string
		completed   int64
	)
	if err := scanner.Scan(
		&item.ID,
		&item.DisplayName,
		&mimeType,
		&item.SizeBytes,
		&payload,
		&item.ProgressPercent,
		&enqueuedRaw,
		&completed,
	); err != nil {
		return nil, err
	}
	item.MimeType = mimeType.String
	item.Payload = payload
	if item.Payload == nil {
		item.Payload = []byte{}
	}
	item.Completed = completed != 0
	if enqueued, err := parseTimeString(enqueuedRaw); err == nil {
		item.EnqueuedAt = enqueued
	}
	return &item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

package queue

import (
	"fmt"
	"math"
	"time"

	"ferry/internal/services"
)

// ErrPayloadTooLarge reports that an item exceeds the persistence ceiling and
// was not written. It matches services.ErrSizeLimit.
var ErrPayloadTooLarge = fmt.Errorf("%w: payload exceeds queue.max_persist_mib", services.ErrSizeLimit)

// Item is one pending upload.
type Item struct {
	ID              string
	DisplayName     string
	MimeType        string
	SizeBytes       int64
	Payload         []byte
	ProgressPercent float64
	EnqueuedAt      time.Time
	Completed       bool
}

// Stats summarizes store contents.
type Stats struct {
	Pending      int   `json:"pending"`
	PendingBytes int64 `json:"pending_bytes"`
	Completed    int   `json:"completed"`
}

// DatabaseHealth describes the on-disk state of the queue database.
type DatabaseHealth struct {
	DBPath         string `json:"db_path"`
	DatabaseExists bool   `json:"database_exists"`
	Readable       bool   `json:"readable"`
	SchemaVersion  int    `json:"schema_version"`
	TotalItems     int    `json:"total_items"`
	IntegrityCheck bool   `json:"integrity_check"`
	Error          string `json:"error,omitempty"`
}

// ClampPercent bounds percent to [0,100].
func ClampPercent(percent float64) float64 {
	switch {
	case math.IsNaN(percent):
		return 0
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	default:
		return percent
	}
}

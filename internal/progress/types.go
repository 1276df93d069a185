package progress

import "time"

// Kind classifies what an entry represents.
type Kind string

const (
	KindFile Kind = "file"
	KindLink Kind = "link"
	KindNote Kind = "note"
)

// ParseKind maps free-form input to a Kind, defaulting to KindFile.
func ParseKind(value string) Kind {
	switch Kind(value) {
	case KindLink:
		return KindLink
	case KindNote:
		return KindNote
	default:
		return KindFile
	}
}

// Entry is one upload as seen by the UI.
type Entry struct {
	BatchID     string    `json:"batch_id,omitempty"`
	ItemID      string    `json:"item_id"`
	DisplayName string    `json:"display_name"`
	Kind        Kind      `json:"kind"`
	Percent     float64   `json:"percent"`
	SizeBytes   int64     `json:"size_bytes,omitempty"`
	Completed   bool      `json:"completed"`
	AddedAt     time.Time `json:"added_at"`
}

// Update is published to watchers whenever an entry changes.
type Update struct {
	ItemID    string  `json:"item_id"`
	Percent   float64 `json:"percent"`
	Completed bool    `json:"completed"`
	Removed   bool    `json:"removed"`
}

// Summary aggregates all entries.
type Summary struct {
	Count          int     `json:"count"`
	OverallPercent float64 `json:"overall_percent"`
	InFlight       bool    `json:"in_flight"`
}

// BatchCount reports how many entries of a batch exist and how many completed.
type BatchCount struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

// Options configures a Registry.
type Options struct {
	// Tick is the coalescing interval used by Run.
	Tick time.Duration
	// Grace is how long completed entries remain visible.
	Grace time.Duration
	// WatchBuffer is the default channel capacity for Watch.
	WatchBuffer int
}

const (
	defaultTick        = 100 * time.Millisecond
	defaultWatchBuffer = 64
	maxWatchBacklog    = 1024
)

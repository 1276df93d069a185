package testsupport

import (
	"bytes"
	"context"
	"testing"
	"time"

	"ferry/internal/config"
	"ferry/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewItem builds a queue item with a patterned payload of size bytes.
func NewItem(id string, size int) *queue.Item {
	return &queue.Item{
		ID:          id,
		DisplayName: id + ".bin",
		MimeType:    "application/octet-stream",
		SizeBytes:   int64(size),
		Payload:     bytes.Repeat([]byte{0x42}, size),
		EnqueuedAt:  time.Now().UTC(),
	}
}

// MustPut persists item or fails the test.
func MustPut(t testing.TB, store *queue.Store, item *queue.Item) {
	t.Helper()

	if err := store.Put(context.Background(), item); err != nil {
		t.Fatalf("store.Put(%s): %v", item.ID, err)
	}
}

// WaitFor polls cond until it returns true or the timeout elapses.
func WaitFor(t testing.TB, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within %s", timeout)
	}
}

package queue_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"ferry/internal/queue"
	"ferry/internal/services"
	"ferry/internal/testsupport"
)

func TestPutListPendingRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item := &queue.Item{
		ID:              "item-1",
		DisplayName:     "report.pdf",
		MimeType:        "application/pdf",
		SizeBytes:       4096,
		Payload:         testsupport.Pattern(4096),
		ProgressPercent: 12.5,
		EnqueuedAt:      time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC),
	}
	testsupport.MustPut(t, store, item)

	pending, err := store.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending item, got %d", len(pending))
	}
	got := pending[0]
	if got.ID != item.ID || got.DisplayName != item.DisplayName || got.MimeType != item.MimeType {
		t.Fatalf("metadata mismatch: %#v", got)
	}
	if got.SizeBytes != item.SizeBytes || got.ProgressPercent != item.ProgressPercent || got.Completed {
		t.Fatalf("numeric fields mismatch: %#v", got)
	}
	if !got.EnqueuedAt.Equal(item.EnqueuedAt) {
		t.Fatalf("enqueued_at mismatch: got %s want %s", got.EnqueuedAt, item.EnqueuedAt)
	}
	if !bytes.Equal(got.Payload, item.Payload) {
		t.Fatal("payload is not byte-for-byte identical")
	}
}

func TestListPendingIsFIFO(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// Inserted out of order; 100ms vs 1s checks that ordering is chronological, not lexical.
	for _, tc := range []struct {
		id     string
		offset time.Duration
	}{
		{"c", 2 * time.Second},
		{"a", 100 * time.Millisecond},
		{"b", time.Second},
		{"a2", 100 * time.Millisecond},
	} {
		item := testsupport.NewItem(tc.id, 8)
		item.EnqueuedAt = base.Add(tc.offset)
		testsupport.MustPut(t, store, item)
	}

	pending, err := store.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	var order []string
	for _, item := range pending {
		order = append(order, item.ID)
	}
	want := []string{"a", "a2", "b", "c"}
	if len(order) != len(want) {
		t.Fatalf("unexpected order %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("unexpected order %v, want %v", order, want)
		}
	}
}

func TestPutRejectsOversizedPayload(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxPersistMiB(1))
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item := testsupport.NewItem("big", 1024*1024+1)
	err := store.Put(ctx, item)
	if !errors.Is(err, queue.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if !errors.Is(err, services.ErrSizeLimit) {
		t.Fatalf("expected size limit marker, got %v", err)
	}
	got, err := store.GetByID(ctx, "big")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != nil {
		t.Fatal("oversized item must not be persisted")
	}
}

func TestPutRequiresID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if err := store.Put(context.Background(), &queue.Item{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateProgressClampsAndNeverLowers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.MustPut(t, store, testsupport.NewItem("p", 16))

	steps := []struct {
		in   float64
		want float64
	}{
		{-5, 0},
		{40, 40},
		{20, 40},
		{150, 100},
	}
	for _, step := range steps {
		if err := store.UpdateProgress(ctx, "p", step.in); err != nil {
			t.Fatalf("UpdateProgress(%v): %v", step.in, err)
		}
		got, err := store.GetByID(ctx, "p")
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.ProgressPercent != step.want {
			t.Fatalf("after %v: progress = %v, want %v", step.in, got.ProgressPercent, step.want)
		}
	}
}

func TestUpdateProgressIgnoresAbsentAndCompleted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := store.UpdateProgress(ctx, "missing", 50); err != nil {
		t.Fatalf("UpdateProgress on absent item: %v", err)
	}
	testsupport.MustPut(t, store, testsupport.NewItem("done", 16))
	if err := store.MarkCompleted(ctx, "done"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if err := store.UpdateProgress(ctx, "done", 10); err != nil {
		t.Fatalf("UpdateProgress on completed item: %v", err)
	}
	got, err := store.GetByID(ctx, "done")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !got.Completed || got.ProgressPercent != 100 {
		t.Fatalf("expected completed at 100%%, got %#v", got)
	}
	pending, err := store.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("completed items must not be pending, got %d", len(pending))
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.MustPut(t, store, testsupport.NewItem("keep", 8))
	testsupport.MustPut(t, store, testsupport.NewItem("drop", 8))

	removed, err := store.Remove(ctx, "drop")
	if err != nil || !removed {
		t.Fatalf("first Remove: removed=%v err=%v", removed, err)
	}
	removed, err = store.Remove(ctx, "drop")
	if err != nil || removed {
		t.Fatalf("second Remove: removed=%v err=%v", removed, err)
	}
	removed, err = store.Remove(ctx, "never-existed")
	if err != nil || removed {
		t.Fatalf("Remove absent: removed=%v err=%v", removed, err)
	}

	pending, err := store.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "keep" {
		t.Fatalf("unexpected store contents: %v", pending)
	}
}

func TestPutUpsertKeepsEnqueueTime(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewItem("dup", 8)
	first.EnqueuedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	testsupport.MustPut(t, store, first)

	second := testsupport.NewItem("dup", 4)
	second.DisplayName = "renamed.bin"
	second.EnqueuedAt = first.EnqueuedAt.Add(time.Hour)
	testsupport.MustPut(t, store, second)

	got, err := store.GetByID(ctx, "dup")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.DisplayName != "renamed.bin" || got.SizeBytes != 4 {
		t.Fatalf("expected replaced metadata, got %#v", got)
	}
	if !got.EnqueuedAt.Equal(first.EnqueuedAt) {
		t.Fatalf("enqueue time changed: %s", got.EnqueuedAt)
	}
}

func TestClearAndStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.MustPut(t, store, testsupport.NewItem("a", 10))
	testsupport.MustPut(t, store, testsupport.NewItem("b", 20))
	testsupport.MustPut(t, store, testsupport.NewItem("c", 30))
	if err := store.MarkCompleted(ctx, "c"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Pending != 2 || stats.PendingBytes != 30 || stats.Completed != 1 {
		t.Fatalf("unexpected stats %#v", stats)
	}

	purged, err := store.PurgeCompleted(ctx)
	if err != nil || purged != 1 {
		t.Fatalf("PurgeCompleted: purged=%d err=%v", purged, err)
	}
	cleared, err := store.Clear(ctx)
	if err != nil || cleared != 2 {
		t.Fatalf("Clear: cleared=%d err=%v", cleared, err)
	}
	stats, err = store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats != (queue.Stats{}) {
		t.Fatalf("expected empty stats, got %#v", stats)
	}
}

func TestReopenPreservesRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	testsupport.MustPut(t, store, testsupport.NewItem("survivor", 64))
	if err := store.UpdateProgress(context.Background(), "survivor", 33); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	pending, err := reopened.ListPending(context.Background())
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "survivor" || pending[0].ProgressPercent != 33 {
		t.Fatalf("unexpected records after reopen: %#v", pending)
	}
}

func TestCheckHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustPut(t, store, testsupport.NewItem("h", 4))

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.Readable || !health.IntegrityCheck {
		t.Fatalf("unexpected health %#v", health)
	}
	if health.TotalItems != 1 || health.SchemaVersion != 1 {
		t.Fatalf("unexpected counts %#v", health)
	}
}

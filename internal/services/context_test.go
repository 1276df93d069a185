package services_test

import (
	"context"
	"testing"

	"ferry/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithItemID(ctx, "item-42")
	ctx = services.WithBatchID(ctx, "batch-1")
	ctx = services.WithSessionID(ctx, "sess-7")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.ItemIDFromContext(ctx); !ok || id != "item-42" {
		t.Fatalf("unexpected item id: %v %v", id, ok)
	}
	if id, ok := services.BatchIDFromContext(ctx); !ok || id != "batch-1" {
		t.Fatalf("unexpected batch id: %v %v", id, ok)
	}
	if id, ok := services.SessionIDFromContext(ctx); !ok || id != "sess-7" {
		t.Fatalf("unexpected session id: %v %v", id, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := services.WithItemID(context.Background(), "")
	if _, ok := services.ItemIDFromContext(ctx); ok {
		t.Fatal("expected blank item id to be ignored")
	}
}

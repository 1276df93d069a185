package limiter_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ferry/internal/limiter"
	"ferry/internal/logging"
)

func TestLimiterNeverExceedsCapacity(t *testing.T) {
	const (
		capacity = 3
		tasks    = 12
	)
	lim := limiter.New(capacity, logging.NewNop())

	var current, maxSeen atomic.Int64
	handles := make([]*limiter.Handle, 0, tasks)
	for i := 0; i < tasks; i++ {
		handles = append(handles, lim.Submit(context.Background(), fmt.Sprintf("task-%d", i), func(context.Context) error {
			n := current.Add(1)
			for {
				m := maxSeen.Load()
				if n <= m || maxSeen.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(15 * time.Millisecond)
			current.Add(-1)
			return nil
		}))
	}
	lim.Wait()

	for _, h := range handles {
		if err := h.Err(); err != nil {
			t.Fatalf("%s returned %v", h.Name(), err)
		}
	}
	if got := maxSeen.Load(); got > capacity {
		t.Fatalf("observed %d concurrent tasks, capacity %d", got, capacity)
	}
	if got := lim.PeakActive(); got > capacity || got < 1 {
		t.Fatalf("PeakActive = %d, want 1..%d", got, capacity)
	}
	if lim.Active() != 0 || lim.Waiting() != 0 {
		t.Fatalf("expected idle limiter, active=%d waiting=%d", lim.Active(), lim.Waiting())
	}
}

func TestLimiterStartsQueuedTasksInSubmissionOrder(t *testing.T) {
	lim := limiter.New(1, nil)
	release := make(chan struct{})

	var mu sync.Mutex
	var order []int
	record := func(i int) limiter.Task {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}
	}

	lim.Submit(context.Background(), "blocker", func(context.Context) error {
		<-release
		return nil
	})
	for i := 0; i < 8; i++ {
		lim.Submit(context.Background(), fmt.Sprintf("queued-%d", i), record(i))
	}
	close(release)
	lim.Wait()

	for i, got := range order {
		if got != i {
			t.Fatalf("tasks started out of order: %v", order)
		}
	}
	if len(order) != 8 {
		t.Fatalf("expected 8 tasks to run, got %d", len(order))
	}
}

func TestLimiterIsolatesFailuresAndPanics(t *testing.T) {
	lim := limiter.New(2, logging.NewNop())
	boom := errors.New("boom")

	failing := lim.Submit(context.Background(), "failing", func(context.Context) error { return boom })
	panicking := lim.Submit(context.Background(), "panicking", func(context.Context) error { panic("kaboom") })
	var ran atomic.Int32
	var siblings []*limiter.Handle
	for i := 0; i < 4; i++ {
		siblings = append(siblings, lim.Submit(context.Background(), "ok", func(context.Context) error {
			ran.Add(1)
			return nil
		}))
	}
	lim.Wait()

	if !errors.Is(failing.Err(), boom) {
		t.Fatalf("expected boom, got %v", failing.Err())
	}
	if err := panicking.Err(); err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("expected panic captured as error, got %v", err)
	}
	for _, h := range siblings {
		if h.Err() != nil {
			t.Fatalf("sibling failed: %v", h.Err())
		}
	}
	if ran.Load() != 4 {
		t.Fatalf("expected 4 siblings to run, got %d", ran.Load())
	}
}

func TestLimiterCanceledWhileWaiting(t *testing.T) {
	lim := limiter.New(1, nil)
	release := make(chan struct{})
	lim.Submit(context.Background(), "blocker", func(context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	waiting := lim.Submit(ctx, "waiting", func(context.Context) error {
		ran.Store(true)
		return nil
	})
	after := lim.Submit(context.Background(), "after", func(context.Context) error { return nil })

	cancel()
	if err := waiting.Wait(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	close(release)
	if err := after.Wait(context.Background()); err != nil {
		t.Fatalf("task after canceled one failed: %v", err)
	}
	if ran.Load() {
		t.Fatal("canceled task must not run")
	}
}

func TestLimiterConcurrentSubmitters(t *testing.T) {
	lim := limiter.New(4, nil)
	var total atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				lim.Submit(context.Background(), "burst", func(context.Context) error {
					total.Add(1)
					return nil
				})
			}
		}()
	}
	wg.Wait()
	lim.Wait()
	if total.Load() != 200 {
		t.Fatalf("expected 200 tasks, got %d", total.Load())
	}
	if lim.PeakActive() > 4 {
		t.Fatalf("peak %d exceeds capacity", lim.PeakActive())
	}
}

func TestNewClampsCapacity(t *testing.T) {
	if got := limiter.New(0, nil).Capacity(); got != 1 {
		t.Fatalf("Capacity = %d, want 1", got)
	}
}

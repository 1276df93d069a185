package limiter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"ferry/internal/logging"
)

// Task is a unit of work executed inside a slot.
type Task func(ctx context.Context) error

// Limiter bounds concurrent task execution to a fixed capacity.
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int64
	logger   *slog.Logger

	mu   sync.Mutex
	tail chan struct{}

	active  atomic.Int64
	waiting atomic.Int64
	peak    atomic.Int64
	wg      sync.WaitGroup
}

// New constructs a limiter with the given capacity. Capacities below one are
// raised to one.
func New(capacity int, logger *slog.Logger) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	return &Limiter{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
		logger:   logging.NewComponentLogger(logger, "limiter"),
	}
}

// Submit schedules task and returns immediately. The task starts once every
// earlier submission has obtained a slot and a slot is free. If ctx ends
// before a slot is obtained the task never runs and its handle reports ctx.Err().
func (l *Limiter) Submit(ctx context.Context, name string, task Task) *Handle {
	if ctx == nil {
		ctx = context.Background()
	}
	handle := &Handle{name: name, done: make(chan struct{})}

	mine := make(chan struct{})
	l.mu.Lock()
	prev := l.tail
	l.tail = mine
	l.mu.Unlock()

	l.waiting.Add(1)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		if prev != nil {
			select {
			case <-prev:
			case <-ctx.Done():
				l.waiting.Add(-1)
				go func() {
					<-prev
					close(mine)
				}()
				handle.finish(ctx.Err())
				return
			}
		}

		err := l.sem.Acquire(ctx, 1)
		close(mine)
		l.waiting.Add(-1)
		if err != nil {
			handle.finish(err)
			return
		}

		handle.finish(l.run(ctx, name, task))
	}()
	return handle
}

func (l *Limiter) run(ctx context.Context, name string, task Task) (err error) {
	current := l.active.Add(1)
	for {
		peak := l.peak.Load()
		if current <= peak || l.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", name, r)
			l.logger.Error("task panicked",
				logging.String("task", name),
				logging.String(logging.FieldEventType, "task_panic"),
				logging.Any("panic", r),
			)
		}
		l.active.Add(-1)
		l.sem.Release(1)
	}()

	l.logger.Debug("slot acquired",
		logging.String("task", name),
		logging.Int64("active", current),
		logging.Int64("capacity", l.capacity),
	)
	if task == nil {
		return nil
	}
	return task(ctx)
}

// Capacity returns the configured slot count.
func (l *Limiter) Capacity() int { return int(l.capacity) }

// Active returns the number of tasks currently holding a slot.
func (l *Limiter) Active() int { return int(l.active.Load()) }

// Waiting returns the number of submitted tasks still waiting for a slot.
func (l *Limiter) Waiting() int { return int(l.waiting.Load()) }

// PeakActive returns the highest Active value observed.
func (l *Limiter) PeakActive() int { return int(l.peak.Load()) }

// Wait blocks until every task submitted so far has finished.
func (l *Limiter) Wait() { l.wg.Wait() }

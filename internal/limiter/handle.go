package limiter

import (
	"context"
	"sync"
)

// Handle tracks one submitted task.
type Handle struct {
	name string
	done chan struct{}
	once sync.Once
	err  error
}

func (h *Handle) finish(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
	})
}

// Name returns the label supplied at submission.
func (h *Handle) Name() string { return h.name }

// Done is closed once the task has finished or was abandoned.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the task result. It is nil until Done is closed.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Wait blocks until the task finishes or ctx ends.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Completed returns a handle that is already finished with err.
func Completed(name string, err error) *Handle {
	h := &Handle{name: name, done: make(chan struct{})}
	h.finish(err)
	return h
}

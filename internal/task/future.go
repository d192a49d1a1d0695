package task

import (
	"context"
	"sync"
)

// Future is a settle-once cell for the reply to a scheduled task.
// It is safe to poll from the render goroutine every tick.
type Future struct {
	done  chan struct{}
	once  sync.Once
	value any
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) settle(value any, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Done is closed once the future has settled, successfully or not.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Poll returns the settled value without blocking.
// The bool reports whether the future has settled yet.
func (f *Future) Poll() (any, error, bool) {
	select {
	case <-f.done:
		return f.value, f.err, true
	default:
		return nil, nil, false
	}
}

// Wait blocks until the future settles or ctx is cancelled.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

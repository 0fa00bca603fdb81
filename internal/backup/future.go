package backup

import (
	"context"
	"sync"
)

// Future is the pending result of a queued operation.
type Future[T any] struct {
	id   string
	done chan struct{}
	val  T
	err  error
	once sync.Once
}

func newFuture[T any](id string) *Future[T] {
	return &Future[T]{id: id, done: make(chan struct{})}
}

// ID returns the job id events for this operation are published under.
func (f *Future[T]) ID() string { return f.id }

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the result is available or ctx is done. The returned
// error is the operation's error, or ctx's error if waiting was cut short.
// Cancelling ctx never cancels the operation itself.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// resolve sets the result. Only the first call has any effect.
func (f *Future[T]) resolve(val T, err error) {
	f.once.Do(func() {
		f.val = val
		f.err = err
		close(f.done)
	})
}

package backup

import (
	"context"
	"sync"
)

// Dispatcher runs callbacks on behalf of the engine. Callbacks are never run
// on the engine's worker; the dispatcher decides where they run.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(fn func())

// Dispatch implements Dispatcher.
func (f DispatcherFunc) Dispatch(fn func()) { f(fn) }

// Loop is a Dispatcher backed by an unbounded FIFO queue. Callbacks run on
// whichever goroutine calls Run, RunUntil or Drain, in dispatch order.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

// NewLoop creates an empty loop.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Dispatch queues fn. It never blocks.
func (l *Loop) Dispatch(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued callbacks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Drain runs every queued callback, including ones queued while draining,
// and returns how many ran.
func (l *Loop) Drain() int {
	n := 0
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		if len(batch) == 0 {
			return n
		}
		for _, fn := range batch {
			fn()
		}
		n += len(batch)
	}
}

// Run runs callbacks as they arrive until ctx is done. Callbacks already
// queued when ctx ends are left for a later Drain.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.Drain()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// RunUntil runs callbacks as they arrive until done is closed, then drains
// whatever is left. Pass a Future's Done channel to run an operation's
// callbacks through to its completion.
func (l *Loop) RunUntil(done <-chan struct{}) {
	for {
		l.Drain()
		select {
		case <-done:
			l.Drain()
			return
		case <-l.wake:
		}
	}
}

// serialDispatcher runs callbacks in order on its own goroutine.
type serialDispatcher struct {
	loop   *Loop
	cancel context.CancelFunc
	done   chan struct{}
}

func newSerialDispatcher() *serialDispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &serialDispatcher{loop: NewLoop(), cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(d.done)
		_ = d.loop.Run(ctx)
		d.loop.Drain()
	}()
	return d
}

func (d *serialDispatcher) Dispatch(fn func()) { d.loop.Dispatch(fn) }

// stop runs the remaining callbacks and joins the goroutine.
func (d *serialDispatcher) stop() {
	d.cancel()
	<-d.done
}

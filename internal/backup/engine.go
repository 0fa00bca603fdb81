// Package backup runs archive exports and imports one at a time on a single
// background worker.
//
// Operations are queued in FIFO order and return a Future immediately.
// Completion and progress callbacks are handed to a Dispatcher and never run
// on the worker, so a slow callback cannot stall the next operation.
package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/sprout/internal/archive"
	serrors "github.com/randalmurphal/sprout/internal/errors"
	"github.com/randalmurphal/sprout/internal/events"
	"github.com/randalmurphal/sprout/internal/progress"
)

// ErrClosed is the result of an operation submitted after Close.
var ErrClosed = errors.New("backup engine is closed")

// Exporter writes archives.
type Exporter interface {
	Export(ctx context.Context, dest string, scope archive.Scope, format archive.Format, reporter progress.Reporter) (*archive.ExportSummary, error)
}

// Importer restores archives.
type Importer interface {
	Import(ctx context.Context, src string, mode archive.Mode, reporter progress.Reporter) archive.ImportResult
}

// job is one queued operation.
type job struct {
	id   string
	data events.JobData
	run  func(ctx context.Context)
	// fail reports a run that panicked: the failed event, onComplete and
	// the future all see cause wrapped in the operation's error code.
	fail func(cause error)
	// reject resolves the job's future when it can no longer run.
	reject func(err error)
}

// Engine serializes backup operations on one worker goroutine.
type Engine struct {
	exporter   Exporter
	importer   Importer
	dispatcher Dispatcher
	owned      *serialDispatcher
	events     *events.PublishHelper
	logger     *slog.Logger

	mu      sync.Mutex
	queue   []*job
	closed  bool
	seq     int
	running string

	wake      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// Option configures an Engine.
type Option func(*Engine)

// WithDispatcher sets where callbacks run. Without one the engine runs
// callbacks in order on a goroutine of its own.
func WithDispatcher(d Dispatcher) Option {
	return func(e *Engine) { e.dispatcher = d }
}

// WithPublisher publishes job lifecycle events to p.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.events = events.NewPublishHelper(p) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New starts an engine. Close must be called to stop its worker.
func New(exporter Exporter, importer Importer, opts ...Option) *Engine {
	e := &Engine{
		exporter: exporter,
		importer: importer,
		events:   events.NewPublishHelper(nil),
		logger:   slog.Default(),
		wake:     make(chan struct{}, 1),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.dispatcher == nil {
		e.owned = newSerialDispatcher()
		e.dispatcher = e.owned
	}
	go e.work()
	return e
}

// Export queues an export of scope to dest. onComplete receives whether the
// archive was written; the future's error carries the reason when it was not.
func (e *Engine) Export(dest string, scope archive.Scope, format archive.Format, onComplete func(bool), onProgress progress.Func) *Future[bool] {
	fut := newFuture[bool](e.nextID(events.KindExport))
	data := events.JobData{Kind: events.KindExport, Path: dest, Scope: scope.String(), Format: string(format)}

	finish := func(ok bool, err error) {
		e.dispatch(func() {
			if onComplete != nil {
				onComplete(ok)
			}
		})
		fut.resolve(ok, err)
	}
	e.submit(&job{
		id:   fut.ID(),
		data: data,
		run: func(ctx context.Context) {
			start := time.Now()
			summary, err := e.exporter.Export(ctx, dest, scope, format, e.reporter(onProgress))
			ok := err == nil
			if ok {
				e.events.Complete(fut.ID(), data.Kind, summary.String(), time.Since(start), 0, summary)
			} else {
				e.events.Failed(fut.ID(), data.Kind, errorCode(err), err)
			}
			finish(ok, err)
		},
		fail: func(cause error) {
			err := serrors.ErrExportFailed(dest, cause)
			e.events.Failed(fut.ID(), data.Kind, errorCode(err), err)
			finish(false, err)
		},
		reject: func(err error) { fut.resolve(false, err) },
	})
	return fut
}

// Import queues a restore of src. onComplete receives the full result; the
// future carries the same result and its Err.
func (e *Engine) Import(src string, mode archive.Mode, onComplete func(archive.ImportResult), onProgress progress.Func) *Future[archive.ImportResult] {
	fut := newFuture[archive.ImportResult](e.nextID(events.KindImport))
	data := events.JobData{Kind: events.KindImport, Path: src, Mode: string(mode)}

	finish := func(res archive.ImportResult) {
		e.dispatch(func() {
			if onComplete != nil {
				onComplete(res)
			}
		})
		fut.resolve(res, res.Err)
	}
	e.submit(&job{
		id:   fut.ID(),
		data: data,
		run: func(ctx context.Context) {
			start := time.Now()
			res := e.importer.Import(ctx, src, mode, e.reporter(onProgress))
			for _, w := range res.Warnings {
				e.events.Warning(fut.ID(), w.Category, w.Row, w.Reason)
			}
			if res.Success {
				e.events.Complete(fut.ID(), data.Kind, res.Summary, time.Since(start), len(res.Warnings), res.Counts)
			} else {
				e.events.Failed(fut.ID(), data.Kind, errorCode(res.Err), res.Err)
			}
			finish(res)
		},
		fail: func(cause error) {
			err := serrors.ErrStorageFailed("import", cause)
			e.events.Failed(fut.ID(), data.Kind, errorCode(err), err)
			finish(failedImport(err))
		},
		reject: func(err error) { fut.resolve(failedImport(err), err) },
	})
	return fut
}

// Pending returns the number of queued operations, not counting the one
// running.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Running returns the id of the operation on the worker, or "".
func (e *Engine) Running() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Close stops accepting operations, runs everything already queued, and
// waits for the worker to exit. Callbacks still pending on an engine-owned
// dispatcher run before Close returns.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()
		e.signal()

		<-e.stopped
		if e.owned != nil {
			e.owned.stop()
		}
	})
	return nil
}

func (e *Engine) nextID(kind string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	return fmt.Sprintf("%s-%d", kind, e.seq)
}

func (e *Engine) submit(j *job) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.logger.Warn("operation rejected, engine closed", "job", j.id, "kind", j.data.Kind)
		j.reject(ErrClosed)
		return
	}
	// Queued is published under the lock so it always precedes Started.
	e.events.Queued(j.id, j.data)
	e.queue = append(e.queue, j)
	depth := len(e.queue)
	e.mu.Unlock()

	e.logger.Debug("job queued", "job", j.id, "kind", j.data.Kind, "path", j.data.Path, "depth", depth)
	e.signal()
}

func (e *Engine) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// work is the worker loop. It exits once the engine is closed and the
// queue is empty.
func (e *Engine) work() {
	defer close(e.stopped)
	ctx := context.Background()
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			closed := e.closed
			e.mu.Unlock()
			if closed {
				return
			}
			<-e.wake
			continue
		}
		j := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.running = j.id
		e.mu.Unlock()

		e.logger.Debug("job started", "job", j.id, "kind", j.data.Kind)
		e.events.Started(j.id, j.data)
		e.runJob(ctx, j)

		e.mu.Lock()
		e.running = ""
		e.mu.Unlock()
	}
}

// runJob runs one job, turning a panic into a failed result so the worker
// survives.
func (e *Engine) runJob(ctx context.Context, j *job) {
	finished := false
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("job panicked", "job", j.id, "panic", r)
			if !finished {
				j.fail(fmt.Errorf("%s %s panicked: %v", j.data.Kind, j.id, r))
			}
		}
	}()
	j.run(ctx)
	finished = true
}

func failedImport(err error) archive.ImportResult {
	return archive.ImportResult{Err: err, Summary: "Import failed: " + errMessage(err)}
}

// errMessage prefers the short description of a structured error.
func errMessage(err error) string {
	if se := serrors.AsSproutError(err); se != nil {
		return se.What
	}
	return err.Error()
}

// reporter wraps onProgress so updates reach it through the dispatcher.
func (e *Engine) reporter(onProgress progress.Func) progress.Reporter {
	if onProgress == nil {
		return progress.Discard
	}
	return progress.Func(func(current, total int) {
		e.dispatch(func() { onProgress(current, total) })
	})
}

func (e *Engine) dispatch(fn func()) {
	e.dispatcher.Dispatch(fn)
}

func errorCode(err error) string {
	if se := serrors.AsSproutError(err); se != nil {
		return string(se.Code)
	}
	return ""
}

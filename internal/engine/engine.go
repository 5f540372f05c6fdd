package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

var (
	ErrEngineStopped = fmt.Errorf("engine stopped")
	ErrNilAction     = fmt.Errorf("invalid argument: nil action")
	ErrActionPanic   = fmt.Errorf("action panicked")
)

// reservedThreads is kept free of workers when the bound is left to the default.
const reservedThreads = 2

// Action is a unit of work executed by the engine.
//
// ctx carries the item's correlation id (see [CorrelationID]). It is not
// cancelled by a forced shutdown: an action that has started always runs
// to completion.
type Action func(ctx context.Context) error

// Options configures an [Engine].
type Options struct {
	Workers int         // Concurrency bound (default: DefaultWorkers())
	Logger  *log.Logger // Logger for lifecycle and per-item failures (default: log.Default())
}

// Stats is a point-in-time snapshot of engine counters.
type Stats struct {
	Workers   int   // Concurrency bound
	Submitted int64 // Items accepted by Submit
	Completed int64 // Items whose action returned nil
	Failed    int64 // Items whose action returned an error or panicked
	Abandoned int64 // Items discarded by a forced shutdown
	Active    int64 // Items executing right now
}

// Engine runs submitted actions on a fixed set of workers so that at most
// Workers() actions execute at the same time.
type Engine struct {
	workers int
	logger  *log.Logger
	queue   *taskQueue

	cancel       chan struct{}
	wg           sync.WaitGroup
	stopping     atomic.Bool
	shutdownOnce sync.Once

	mu        sync.Mutex
	drainErrs []error

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	abandoned atomic.Int64
	active    atomic.Int64
}

// DefaultWorkers returns the number of available CPUs minus a small reserve, never less than 1.
func DefaultWorkers() int {
	return max(1, runtime.NumCPU()-reservedThreads)
}

// New creates an [Engine] and starts its workers.
//
// These are the only workers the engine ever runs; [Engine.Shutdown] signals and joins them.
func New(opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	e := &Engine{
		workers: opts.Workers,
		logger:  opts.Logger,
		queue:   newTaskQueue(),
		cancel:  make(chan struct{}),
	}

	e.wg.Add(e.workers)
	for i := range e.workers {
		go e.worker(i + 1)
	}

	e.logger.Debug("engine started", "workers", e.workers)
	return e
}

// Workers returns the concurrency bound.
func (e *Engine) Workers() int {
	return e.workers
}

// Submit enqueues action without a correlation id and returns immediately.
func (e *Engine) Submit(action Action) error {
	return e.SubmitWithID("", action)
}

// SubmitWithID enqueues action to run under correlationID and returns immediately.
//
// Returns [ErrNilAction] for a nil action and [ErrEngineStopped] once
// shutdown has begun; in both cases the action never runs.
func (e *Engine) SubmitWithID(correlationID string, action Action) error {
	if action == nil {
		return ErrNilAction
	}

	if !e.queue.Enqueue(workItem{action: action, correlationID: correlationID}) {
		return ErrEngineStopped
	}

	e.submitted.Add(1)
	return nil
}

// Stopped reports whether shutdown has begun.
func (e *Engine) Stopped() bool {
	return e.stopping.Load()
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Workers:   e.workers,
		Submitted: e.submitted.Load(),
		Completed: e.completed.Load(),
		Failed:    e.failed.Load(),
		Abandoned: e.abandoned.Load(),
		Active:    e.active.Load(),
	}
}

// Shutdown stops the engine and blocks until every worker has exited.
//
// A graceful shutdown (forced == false) rejects new submissions and lets
// the workers drain the queue. A forced shutdown also raises the
// cancellation signal: idle workers exit immediately, running actions
// finish, and queued items are abandoned.
//
// Only the first call has an effect. It returns the joined errors of
// actions that failed after shutdown began; later calls return nil.
func (e *Engine) Shutdown(forced bool) error {
	first := false
	e.shutdownOnce.Do(func() { first = true })
	if !first {
		e.wg.Wait()
		return nil
	}

	e.logger.Debug("engine stopping", "forced", forced, "queued", e.queue.Len())

	e.stopping.Store(true)
	e.queue.Close()
	if forced {
		close(e.cancel)
	}

	e.wg.Wait()

	if forced {
		if dropped := e.queue.Drain(); len(dropped) > 0 {
			e.abandoned.Add(int64(len(dropped)))
			e.logger.Warn("abandoned queued tasks", "count", len(dropped))
		}
	}

	e.mu.Lock()
	errs := e.drainErrs
	e.drainErrs = nil
	e.mu.Unlock()

	e.logger.Debug("engine stopped",
		"completed", e.completed.Load(),
		"failed", e.failed.Load(),
		"abandoned", e.abandoned.Load(),
	)

	return errors.Join(errs...)
}

// worker runs items one at a time until the queue is drained or cancellation is raised.
func (e *Engine) worker(id int) {
	defer e.wg.Done()

	for {
		it, ok := e.queue.Dequeue(e.cancel)
		if !ok {
			return
		}
		e.execute(id, it)
	}
}

// execute runs a single item. Failures are contained here: they are
// logged and counted but never stop the worker.
func (e *Engine) execute(worker int, it workItem) {
	ctx := context.Background()
	if it.correlationID != "" {
		ctx = WithCorrelationID(ctx, it.correlationID)
	}
	logger := LoggerFrom(ctx, e.logger)

	e.active.Add(1)
	err := runAction(ctx, it.action)
	e.active.Add(-1)

	if err == nil {
		e.completed.Add(1)
		return
	}

	e.failed.Add(1)
	logger.Error("task failed", "worker", worker, "error", err)

	if e.stopping.Load() {
		if it.correlationID != "" {
			err = fmt.Errorf("task %s: %w", it.correlationID, err)
		}
		e.mu.Lock()
		e.drainErrs = append(e.drainErrs, err)
		e.mu.Unlock()
	}
}

// runAction invokes action and converts a panic into an error.
func runAction(ctx context.Context, action Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrActionPanic, r)
		}
	}()
	return action(ctx)
}

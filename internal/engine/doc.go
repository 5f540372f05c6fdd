// Package engine provides a bounded-concurrency task execution engine.
//
// # Execution Model
//
// An [Engine] owns exactly N worker goroutines for its whole lifetime, where N
// is fixed at construction ([Options].Workers, defaulting to [DefaultWorkers]).
// Each worker loops over a shared FIFO queue:
//
//  1. block until an item is available, the queue is closed, or cancellation is raised
//  2. run the item's [Action] to completion
//  3. repeat
//
// Because a worker never holds more than one item, no more than N actions run
// at once. There is no second limiter.
//
// # Submitting Work
//
// [Engine.Submit] and [Engine.SubmitWithID] enqueue and return immediately.
// They fail synchronously with [ErrNilAction] or [ErrEngineStopped].
// An action's own error (or panic) is logged and counted in [Stats]; it never
// reaches the submitter and never stops a worker.
//
// # Correlation IDs
//
// The id passed to [Engine.SubmitWithID] is stored in the context handed to the
// action. Read it with [CorrelationID] or tag a logger with [LoggerFrom].
// Each item gets a fresh context, so ids never leak between items.
//
// # Shutdown
//
// [Engine.Shutdown] with forced == false drains the queue before returning.
// With forced == true, idle workers exit immediately and queued items are
// abandoned; running actions are not interrupted. Both modes block until all
// workers exit and both are idempotent.
package engine

package engine

import (
	"sync"
)

// workItem is a deferred action plus the correlation id it runs under.
type workItem struct {
	action        Action
	correlationID string
}

// taskQueue is a thread-safe, unbounded FIFO queue of work items.
//
// Any number of goroutines may enqueue and dequeue concurrently.
// Waiting is done on a signal channel so that dequeuers can also select on
// a cancellation channel.
type taskQueue struct {
	mu     sync.Mutex
	items  []workItem
	closed bool
	signal chan struct{} // buffered, size 1; closed by Close
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		items:  make([]workItem, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends an item to the back of the queue.
// Returns false if the queue has been closed.
func (q *taskQueue) Enqueue(it workItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, it)
	q.notify()
	return true
}

// notify wakes one waiter. Multiple signals coalesce in the 1-slot buffer.
// Callers hold q.mu and have checked that the queue is open.
func (q *taskQueue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// TryDequeue removes and returns the front item without blocking.
func (q *taskQueue) TryDequeue() (workItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return workItem{}, false
	}

	it := q.items[0]
	q.items[0] = workItem{} // release the closure for GC
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}

	// A coalesced signal may have been consumed by this dequeuer while
	// other items remain; pass the wake-up on to the next waiter.
	if len(q.items) > 0 && !q.closed {
		q.notify()
	}

	return it, true
}

// Dequeue blocks until an item is available, the queue is closed and
// empty, or done is closed. The second result is false in the latter two
// cases.
func (q *taskQueue) Dequeue(done <-chan struct{}) (workItem, bool) {
	for {
		select {
		case <-done:
			return workItem{}, false
		default:
		}

		if it, ok := q.TryDequeue(); ok {
			return it, true
		}

		q.mu.Lock()
		drained := q.closed && len(q.items) == 0
		q.mu.Unlock()
		if drained {
			return workItem{}, false
		}

		select {
		case <-done:
			return workItem{}, false
		case <-q.signal:
		}
	}
}

// Len returns the number of queued items.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close marks the queue complete. Further Enqueue calls fail. Waiters are
// woken so they can drain what is left and exit.
func (q *taskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Drain removes and returns every queued item.
func (q *taskQueue) Drain() []workItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.items
	q.items = nil
	return out
}

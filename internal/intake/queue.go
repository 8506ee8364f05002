// Package intake buffers pending transaction hashes between the event source
// and the dispatch governor.
//
// The queue is bounded and freshness-biased: when full, Offer evicts the
// oldest pending item instead of blocking or rejecting the newcomer.
package intake

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Take once the queue has been closed.
var ErrClosed = errors.New("intake: queue closed")

// Stats are aggregate counters since construction.
type Stats struct {
	Capacity int
	Depth    int
	Offered  uint64
	Evicted  uint64
	Rejected uint64
	Taken    uint64
}

// Queue is a ring buffer over pending items with a single logical consumer.
type Queue[T any] struct {
	mu     sync.Mutex
	buf    []T
	head   int
	size   int
	closed bool

	// ready holds at most one wakeup for a blocked Take.
	ready chan struct{}

	offered  atomic.Uint64
	evicted  atomic.Uint64
	rejected atomic.Uint64
	taken    atomic.Uint64
}

// New creates a queue holding at most capacity pending items.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		panic("intake capacity must be positive")
	}
	return &Queue[T]{
		buf:   make([]T, capacity),
		ready: make(chan struct{}, 1),
	}
}

// Offer admits item without blocking. It returns false only when the queue is closed.
func (q *Queue[T]) Offer(item T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.rejected.Add(1)
		return false
	}

	capacity := len(q.buf)
	if q.size == capacity {
		var zero T
		q.buf[q.head] = zero
		q.head = (q.head + 1) % capacity
		q.size--
		q.evicted.Add(1)
	}
	q.buf[(q.head+q.size)%capacity] = item
	q.size++
	q.mu.Unlock()

	q.offered.Add(1)
	q.signal()
	return true
}

// Take blocks until an item is available, ctx is done, or the queue is closed.
// Items are returned oldest first.
func (q *Queue[T]) Take(ctx context.Context) (T, error) {
	var zero T
	for {
		item, ok, closed := q.pop()
		if ok {
			return item, nil
		}
		if closed {
			return zero, ErrClosed
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.ready:
		}
	}
}

func (q *Queue[T]) pop() (item T, ok bool, closed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return item, false, true
	}
	if q.size == 0 {
		return item, false, false
	}

	var zero T
	item = q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	q.taken.Add(1)

	if q.size > 0 {
		q.signal()
	}
	return item, true, false
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Close stops admission and wakes any blocked Take. Pending items are dropped.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Len returns the number of pending items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return len(q.buf)
}

// Snapshot copies the pending items, oldest first.
func (q *Queue[T]) Snapshot() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]T, q.size)
	for i := 0; i < q.size; i++ {
		out[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	return out
}

// Stats returns the current counters.
func (q *Queue[T]) Stats() Stats {
	return Stats{
		Capacity: len(q.buf),
		Depth:    q.Len(),
		Offered:  q.offered.Load(),
		Evicted:  q.evicted.Load(),
		Rejected: q.rejected.Load(),
		Taken:    q.taken.Load(),
	}
}

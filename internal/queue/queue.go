// Package queue provides an unbounded FIFO used to hand lifecycle events from
// connection goroutines to consumers without ever blocking the producer.
package queue

import "sync"

// Queue is an unbounded FIFO. Push never blocks and never drops; Pop blocks
// until an item arrives or the queue is closed and drained.
type Queue[T any] struct {
	mu      sync.Mutex
	ready   *sync.Cond
	items   []T
	head    int // items[:head] are already consumed
	closed  bool
	observe func(depth int)
}

// New creates a queue with room for capacity items before it reallocates.
func New[T any](capacity int) *Queue[T] {
	q := &Queue[T]{items: make([]T, 0, max(capacity, 1))}
	q.ready = sync.NewCond(&q.mu)
	return q
}

// Observe registers fn to receive the queue depth after every change.
// fn runs with the queue locked and must not call back into it.
func (q *Queue[T]) Observe(fn func(depth int)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.observe = fn
}

// Push appends an item. Returns false if the queue is closed.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, item)
	q.changed()
	q.ready.Signal()
	return true
}

// Pop removes the oldest item, blocking until one is available.
// Returns false once the queue is closed and drained.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.depth() == 0 && !q.closed {
		q.ready.Wait()
	}

	var zero T
	if q.depth() == 0 {
		return zero, false
	}

	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	q.compact()
	q.changed()
	return item, true
}

// Close stops further pushes. Pending items can still be popped.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.ready.Broadcast()
}

// Chan forwards items in order to the returned channel, which is closed once
// the queue is closed and drained.
func (q *Queue[T]) Chan() <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for {
			item, ok := q.Pop()
			if !ok {
				return
			}
			out <- item
		}
	}()
	return out
}

func (q *Queue[T]) depth() int {
	return len(q.items) - q.head
}

// compact reclaims the consumed prefix once it is at least half the slice.
func (q *Queue[T]) compact() {
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
		return
	}
	if q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
}

func (q *Queue[T]) changed() {
	if q.observe != nil {
		q.observe(q.depth())
	}
}

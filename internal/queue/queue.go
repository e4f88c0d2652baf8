package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when pushing to a closed queue.
var ErrClosed = errors.New("queue closed")

// Queue is a generic thread-safe FIFO. Consumers can block on Next until an
// item arrives or the queue is closed and drained.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	// ready is closed and replaced whenever items are pushed or the queue closes.
	ready chan struct{}
}

// New creates a new empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		items: make([]T, 0),
		ready: make(chan struct{}),
	}
}

func (q *Queue[T]) wake() {
	close(q.ready)
	q.ready = make(chan struct{})
}

// Push appends items to the queue.
func (q *Queue[T]) Push(items ...T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, items...)
	q.wake()
	return nil
}

// Pop removes and returns the first item. Returns zero value if empty.
func (q *Queue[T]) Pop() T {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, _ := q.popLocked()
	return item
}

func (q *Queue[T]) popLocked() (T, bool) {
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	item := q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// Next blocks until an item is available and returns it. ok is false once
// the queue is closed and empty; err is set when ctx ends first.
func (q *Queue[T]) Next(ctx context.Context) (item T, ok bool, err error) {
	for {
		q.mu.Lock()
		if item, ok := q.popLocked(); ok {
			q.mu.Unlock()
			return item, true, nil
		}
		if q.closed {
			q.mu.Unlock()
			return item, false, nil
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			return item, false, ctx.Err()
		}
	}
}

// Close stops further pushes. Items already queued can still be consumed.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.wake()
}

// Empty returns true if the queue has no items.
func (q *Queue[T]) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Len returns the number of items in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// GetAndEmpty returns all items and clears the queue.
func (q *Queue[T]) GetAndEmpty() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := q.items
	q.items = make([]T, 0, cap(q.items))
	return result
}

// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package boundq provides a fixed-capacity FIFO queue. Unlike the growable
// ring buffers used elsewhere, a full Queue rejects new items instead of
// reallocating, which lets callers treat "full" as backpressure.
package boundq

import (
	"github.com/gammazero/deque"
)

// Queue is a bounded FIFO ring buffer. It is not safe for concurrent use; the
// owner is expected to guard it with its own lock.
type Queue[T any] struct {
	ring     deque.Deque[T]
	capacity int
}

// New returns an empty queue that holds at most capacity items. Panics if
// capacity is less than one.
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		panic("queue capacity must be at least one")
	}
	q := &Queue[T]{capacity: capacity}
	// Pin the ring's storage so that it is allocated once up front and never
	// shrinks or regrows while in use.
	q.ring.SetBaseCap(capacity)
	q.ring.Grow(capacity)
	return q
}

// PushBack appends an item to the back of the queue. Returns false without
// modifying the queue if it is already full.
func (q *Queue[T]) PushBack(item T) bool {
	if q.ring.Len() >= q.capacity {
		return false
	}
	q.ring.PushBack(item)
	return true
}

// PopFront removes and returns the item at the front of the queue. Returns
// the zero value and false if the queue is empty.
func (q *Queue[T]) PopFront() (T, bool) {
	if q.ring.Len() == 0 {
		var zero T
		return zero, false
	}
	return q.ring.PopFront(), true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	return q.ring.Len()
}

// Cap returns the fixed capacity given to [New].
func (q *Queue[T]) Cap() int {
	return q.capacity
}

// Full reports whether PushBack would currently fail.
func (q *Queue[T]) Full() bool {
	return q.ring.Len() >= q.capacity
}

// Clear drops all queued items, leaving the capacity unchanged.
func (q *Queue[T]) Clear() {
	q.ring.Clear()
}

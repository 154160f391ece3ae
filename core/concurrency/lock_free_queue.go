// File: core/concurrency/lock_free_queue.go
// Package concurrency provides the synchronization primitives shared by the
// pool and pipe layers.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bounded MPMC queue using per-slot sequence numbers, after the design by
// Dmitry Vyukov. Enqueue and Dequeue never block; callers decide whether to
// retry, park, or fall back to allocation when the queue is momentarily
// full or empty.

package concurrency

import "sync/atomic"

const cacheLinePad = 64

// slot pairs a value with the sequence counter that tracks whose turn it is
// to touch the cell.
type slot[T any] struct {
	seq atomic.Uint64
	val T
}

// MPMCQueue is a fixed-capacity multi-producer/multi-consumer queue.
// The zero value is not usable; construct with NewMPMCQueue.
type MPMCQueue[T any] struct {
	enqueuePos atomic.Uint64
	_          [cacheLinePad]byte
	dequeuePos atomic.Uint64
	_          [cacheLinePad]byte
	mask       uint64
	slots      []slot[T]
}

// NewMPMCQueue creates a queue with capacity rounded up to a power of two.
func NewMPMCQueue[T any](capacity int) *MPMCQueue[T] {
	size := 2
	for size < capacity {
		size <<= 1
	}
	q := &MPMCQueue[T]{
		mask:  uint64(size - 1),
		slots: make([]slot[T], size),
	}
	for i := range q.slots {
		q.slots[i].seq.Store(uint64(i))
	}
	return q
}

// Enqueue adds v; it reports false when the queue is full.
func (q *MPMCQueue[T]) Enqueue(v T) bool {
	for {
		pos := q.enqueuePos.Load()
		s := &q.slots[pos&q.mask]
		seq := s.seq.Load()
		switch diff := int64(seq) - int64(pos); {
		case diff == 0:
			if q.enqueuePos.CompareAndSwap(pos, pos+1) {
				s.val = v
				s.seq.Store(pos + 1)
				return true
			}
		case diff < 0:
			return false
		default:
			// Another producer claimed the slot first; reload and retry.
		}
	}
}

// Dequeue removes the oldest item; ok is false when the queue is empty.
func (q *MPMCQueue[T]) Dequeue() (item T, ok bool) {
	for {
		pos := q.dequeuePos.Load()
		s := &q.slots[pos&q.mask]
		seq := s.seq.Load()
		switch diff := int64(seq) - int64(pos+1); {
		case diff == 0:
			if q.dequeuePos.CompareAndSwap(pos, pos+1) {
				item = s.val
				var zero T
				s.val = zero
				s.seq.Store(pos + q.mask + 1)
				return item, true
			}
		case diff < 0:
			var zero T
			return zero, false
		default:
			// Another consumer claimed the slot first; reload and retry.
		}
	}
}

// Len reports the number of buffered items. The value is a snapshot and may
// be stale under concurrent use.
func (q *MPMCQueue[T]) Len() int {
	tail := q.enqueuePos.Load()
	head := q.dequeuePos.Load()
	if tail < head {
		return 0
	}
	return int(tail - head)
}

// Cap reports the fixed capacity of the queue.
func (q *MPMCQueue[T]) Cap() int { return len(q.slots) }

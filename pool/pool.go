// File: pool/pool.go
// Package pool implements bounded segment pooling with size class support.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// SegmentPool hands out fixed-size segments up to a hard capacity. When
// every segment is outstanding, Rent parks the caller in a FIFO until a
// segment is released, so the capacity bound doubles as backpressure for
// everything built on top.

package pool

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/momentics/pipebridge/api"
	"github.com/momentics/pipebridge/core/concurrency"
)

const (
	// DefaultSegmentSize is the segment class used when none is configured.
	DefaultSegmentSize = 64 * 1024

	// DefaultPoolCapacity bounds the number of live segments per pool.
	DefaultPoolCapacity = 256
)

// rentWaiter is one parked Rent call. The channel is buffered so the
// releasing goroutine never blocks on delivery; cancelled is guarded by
// the pool mutex and makes stale waiters skippable.
type rentWaiter struct {
	ch        chan *segment
	cancelled bool
}

// SegmentPool is a bounded pool of equally sized segments.
type SegmentPool struct {
	segSize  int
	capacity int
	closed   atomic.Bool

	free *concurrency.MPMCQueue[*segment]

	mu        sync.Mutex
	waiters   *queue.Queue // of *rentWaiter, FIFO by arrival
	allocated int

	rented    atomic.Int64
	returned  atomic.Int64
	rentWaits atomic.Int64
}

var _ api.SegmentSource = (*SegmentPool)(nil)

// NewSegmentPool creates a pool of segSize segments holding at most
// capacity of them alive at once. Non-positive arguments fall back to the
// package defaults. Segments are allocated lazily on first demand.
func NewSegmentPool(segSize, capacity int) *SegmentPool {
	if segSize <= 0 {
		segSize = DefaultSegmentSize
	}
	if capacity <= 0 {
		capacity = DefaultPoolCapacity
	}
	return &SegmentPool{
		segSize:  segSize,
		capacity: capacity,
		free:     concurrency.NewMPMCQueue[*segment](capacity),
		waiters:  queue.New(),
	}
}

// SegmentSize reports the fixed capacity of segments from this pool.
func (p *SegmentPool) SegmentSize() int { return p.segSize }

// Capacity reports the maximum number of live segments.
func (p *SegmentPool) Capacity() int { return p.capacity }

// Rent returns an empty segment with refcount one. When the pool is at
// capacity it blocks until a segment is released, the pool closes, or ctx
// is done. Waiters are served in arrival order.
func (p *SegmentPool) Rent(ctx context.Context) (api.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.closed.Load() {
		return nil, api.ErrPoolClosed
	}
	if s, ok := p.free.Dequeue(); ok {
		p.rented.Add(1)
		return s, nil
	}

	p.mu.Lock()
	if p.closed.Load() {
		p.mu.Unlock()
		return nil, api.ErrPoolClosed
	}
	// A release may have refilled the free list between the fast path
	// and the lock.
	if s, ok := p.free.Dequeue(); ok {
		p.mu.Unlock()
		p.rented.Add(1)
		return s, nil
	}
	if p.allocated < p.capacity {
		p.allocated++
		p.mu.Unlock()
		p.rented.Add(1)
		return newSegment(p.segSize, p), nil
	}
	w := &rentWaiter{ch: make(chan *segment, 1)}
	p.waiters.Add(w)
	p.mu.Unlock()
	p.rentWaits.Add(1)

	select {
	case s := <-w.ch:
		if s == nil {
			return nil, api.ErrPoolClosed
		}
		p.rented.Add(1)
		return s, nil
	case <-ctx.Done():
		p.mu.Lock()
		w.cancelled = true
		p.mu.Unlock()
		// A release may have delivered concurrently with the
		// cancellation; put that segment back in circulation.
		select {
		case s := <-w.ch:
			if s != nil {
				p.deliver(s)
			}
		default:
		}
		return nil, ctx.Err()
	}
}

// Stats returns a snapshot of the pool accounting.
func (p *SegmentPool) Stats() api.PoolStats {
	rented := p.rented.Load()
	returned := p.returned.Load()
	return api.PoolStats{
		Rented:      rented,
		Returned:    returned,
		Outstanding: rented - returned,
		RentWaits:   p.rentWaits.Load(),
	}
}

// Close marks the pool closed, fails parked and future Rent calls with
// api.ErrPoolClosed, and drops the free list. Outstanding segments stay
// valid and are dropped when released. Close is idempotent.
func (p *SegmentPool) Close() {
	p.mu.Lock()
	if p.closed.Load() {
		p.mu.Unlock()
		return
	}
	p.closed.Store(true)
	for p.waiters.Length() > 0 {
		w := p.waiters.Remove().(*rentWaiter)
		if w.cancelled {
			continue
		}
		w.ch <- nil
	}
	for {
		if _, ok := p.free.Dequeue(); !ok {
			break
		}
		p.allocated--
	}
	p.mu.Unlock()
}

// recycle resets a zero-refcount segment and puts it back in circulation.
func (p *SegmentPool) recycle(s *segment) {
	s.n = 0
	s.refs.Store(1)
	p.returned.Add(1)
	p.deliver(s)
}

// deliver hands a reset segment to the oldest live waiter, else the free
// list. On a closed or overfull pool the segment is dropped for the
// collector.
func (p *SegmentPool) deliver(s *segment) {
	p.mu.Lock()
	if p.closed.Load() {
		p.allocated--
		p.mu.Unlock()
		return
	}
	for p.waiters.Length() > 0 {
		w := p.waiters.Remove().(*rentWaiter)
		if w.cancelled {
			continue
		}
		p.mu.Unlock()
		w.ch <- s
		return
	}
	p.mu.Unlock()
	if !p.free.Enqueue(s) {
		p.mu.Lock()
		p.allocated--
		p.mu.Unlock()
	}
}

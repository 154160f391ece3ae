// File: core/concurrency/signal.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Signal is a coalescing wakeup primitive. A burst of Raise calls while the
// waiter is busy collapses into a single pending wakeup, which keeps
// producer-side notification O(1) and allocation-free.

package concurrency

import "context"

// Signal coalesces wakeups between any number of raisers and a waiter.
type Signal struct {
	ch chan struct{}
}

// NewSignal returns a Signal with no pending wakeup.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Raise marks the signal pending. It never blocks; raising an
// already-pending signal is a no-op.
func (s *Signal) Raise() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until the signal is pending or ctx is done. On success the
// pending mark is consumed.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryWait consumes a pending mark without blocking and reports whether one
// was present.
func (s *Signal) TryWait() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

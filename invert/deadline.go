// File: invert/deadline.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Deadline support for PipeStream. A pipeDeadline exposes the current
// deadline as a channel that closes when it passes; chanCtx dresses
// that channel up as a context so pipe waits abort with the
// os.ErrDeadlineExceeded every net.Conn caller expects.

package invert

import (
	"os"
	"sync"
	"time"
)

// pipeDeadline is a resettable deadline gate.
type pipeDeadline struct {
	mu     sync.Mutex
	timer  *time.Timer
	cancel chan struct{} // closed while the deadline is in the past
}

func makePipeDeadline() pipeDeadline {
	return pipeDeadline{cancel: make(chan struct{})}
}

// set moves the deadline to t; the zero time clears it.
func (d *pipeDeadline) set(t time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil && !d.timer.Stop() {
		<-d.cancel // the timer fired between Stop and the lock
	}
	d.timer = nil

	closed := isClosedChan(d.cancel)
	if t.IsZero() {
		if closed {
			d.cancel = make(chan struct{})
		}
		return
	}
	if dur := time.Until(t); dur > 0 {
		if closed {
			d.cancel = make(chan struct{})
		}
		cancel := d.cancel
		d.timer = time.AfterFunc(dur, func() { close(cancel) })
		return
	}
	if !closed {
		close(d.cancel)
	}
}

// wait returns the channel that closes when the deadline passes.
func (d *pipeDeadline) wait() chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancel
}

func isClosedChan(c <-chan struct{}) bool {
	select {
	case <-c:
		return true
	default:
		return false
	}
}

// chanCtx is a minimal context over a deadline channel. Expiry
// surfaces as os.ErrDeadlineExceeded, which satisfies net.Error with
// Timeout() == true.
type chanCtx struct {
	done <-chan struct{}
}

func (chanCtx) Deadline() (time.Time, bool) { return time.Time{}, false }
func (c chanCtx) Done() <-chan struct{}     { return c.done }
func (chanCtx) Value(any) any               { return nil }

func (c chanCtx) Err() error {
	select {
	case <-c.done:
		return os.ErrDeadlineExceeded
	default:
		return nil
	}
}

// File: transport/bridge.go
// Package transport bridges connected stream sockets onto duplex pipes.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A StreamBridge owns one stream socket and one pipe pair and runs one
// pump goroutine per direction. Socket bytes land in pooled pipe
// segments without intermediate copies; pipe backpressure propagates
// into the socket read loop, so a slow application closes the TCP
// window instead of growing a buffer.

package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"

	"github.com/momentics/pipebridge/api"
	"github.com/momentics/pipebridge/control"
	"github.com/momentics/pipebridge/pipe"
)

const (
	// DefaultRetryMin is the first delay after a transient write error.
	DefaultRetryMin = 10 * time.Millisecond

	// DefaultRetryMax caps the transient-write retry delay.
	DefaultRetryMax = 1 * time.Second
)

// Options tunes a stream bridge. The zero value selects the defaults.
type Options struct {
	// RetryMin and RetryMax bound the backoff applied to transient
	// (timeout) write errors.
	RetryMin time.Duration
	RetryMax time.Duration

	// Counters receives bridge accounting; nil uses a private set.
	Counters *control.CounterSet
}

func (o Options) withDefaults() Options {
	if o.RetryMin <= 0 {
		o.RetryMin = DefaultRetryMin
	}
	if o.RetryMax < o.RetryMin {
		o.RetryMax = DefaultRetryMax
	}
	if o.Counters == nil {
		o.Counters = control.NewCounterSet()
	}
	return o
}

// StreamBridge pumps bytes between one stream socket and one duplex
// pipe pair. The application holds the pair's AppSide; the bridge owns
// the TransportSide and the socket.
type StreamBridge struct {
	conn   api.StreamConn
	duplex *pipe.Duplex

	retryMin time.Duration
	retryMax time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	wg        sync.WaitGroup
	sendDone  chan struct{}
	pumpsDone chan struct{}

	closing  atomic.Bool
	graceful atomic.Bool
	aborted  atomic.Bool
	drained  atomic.Bool

	closeDone chan struct{}
	closeErr  error

	recvErr error
	sendErr error

	rxBytes *control.Counter
	txBytes *control.Counter
	retries *control.Counter
}

// NewStreamBridge binds conn to d and starts both pumps. The bridge
// assumes exclusive ownership of the socket and of d's transport side.
func NewStreamBridge(conn api.StreamConn, d *pipe.Duplex, opts Options) *StreamBridge {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	b := &StreamBridge{
		conn:      conn,
		duplex:    d,
		retryMin:  opts.RetryMin,
		retryMax:  opts.RetryMax,
		ctx:       ctx,
		cancel:    cancel,
		sendDone:  make(chan struct{}),
		pumpsDone: make(chan struct{}),
		closeDone: make(chan struct{}),
		rxBytes:   opts.Counters.Counter("bridge.rx_bytes"),
		txBytes:   opts.Counters.Counter("bridge.tx_bytes"),
		retries:   opts.Counters.Counter("bridge.retries"),
	}
	b.wg.Add(2)
	go b.recvPump()
	go b.sendPump()
	go func() {
		b.wg.Wait()
		close(b.pumpsDone)
	}()
	return b
}

// Done is closed once both pumps have stopped, whether by peer
// shutdown, a socket error, or Close/Abort.
func (b *StreamBridge) Done() <-chan struct{} { return b.pumpsDone }

// RecvErr reports the receive pump's terminal error after Done.
// io.EOF and orderly shutdown surface as nil.
func (b *StreamBridge) RecvErr() error { return b.recvErr }

// SendErr reports the send pump's terminal error after Done.
func (b *StreamBridge) SendErr() error { return b.sendErr }

// Close shuts the bridge down gracefully: the outbound pipe is
// completed (a no-op when the application already did), the send pump
// drains every published byte into the socket and half-closes the
// write side, then the socket is closed. Idempotent; concurrent and
// repeated calls observe the first outcome.
func (b *StreamBridge) Close() error { return b.shutdown(true) }

// Abort tears the bridge down immediately: pumps are cancelled, the
// socket is closed and undelivered segments are released. Idempotent.
func (b *StreamBridge) Abort() error { return b.shutdown(false) }

// Shutdown implements api.GracefulShutdown.
func (b *StreamBridge) Shutdown() error { return b.Close() }

var _ api.GracefulShutdown = (*StreamBridge)(nil)

func (b *StreamBridge) shutdown(graceful bool) error {
	if !b.closing.CompareAndSwap(false, true) {
		<-b.closeDone
		return b.closeErr
	}
	if graceful {
		b.graceful.Store(true)
		b.duplex.Out().CompleteWriter(nil)
		<-b.sendDone
	} else {
		b.aborted.Store(true)
	}
	b.cancel()
	b.conn.Close()
	b.wg.Wait()

	// The application side observes closure through its pipe views;
	// completing here is a no-op when a pump already did.
	b.duplex.In().CompleteWriter(b.recvErr)
	b.duplex.Out().CompleteReader(api.ErrBridgeClosed)

	if graceful {
		b.closeErr = b.sendErr
	}
	close(b.closeDone)
	return b.closeErr
}

// recvPump moves socket bytes into the inbound pipe. It stops on peer
// EOF, a socket error, or the inbound reader abandoning the pipe.
func (b *StreamBridge) recvPump() {
	defer b.wg.Done()
	w := b.duplex.TransportSide().Writer()
	for {
		buf, err := w.Writable(b.ctx, 1)
		if err != nil {
			if b.closing.Load() {
				err = api.ErrBridgeClosed
			}
			w.Complete(err)
			return
		}
		n, rerr := b.conn.Read(buf)
		if n > 0 {
			w.Advance(n)
			b.rxBytes.Add(int64(n))
			if ferr := w.Flush(b.ctx); ferr != nil {
				if b.closing.Load() {
					ferr = api.ErrBridgeClosed
				} else {
					b.recvErr = ferr
				}
				w.Complete(ferr)
				return
			}
		}
		if rerr != nil {
			orderly := b.graceful.Load() || b.drained.Load()
			switch {
			case errors.Is(rerr, io.EOF), orderly && errors.Is(rerr, net.ErrClosed):
				w.Complete(nil)
			case b.aborted.Load():
				w.Complete(api.ErrBridgeClosed)
			default:
				b.recvErr = rerr
				w.Complete(rerr)
			}
			return
		}
	}
}

// sendPump moves outbound pipe bytes into the socket. The read cursor
// advances only past bytes the socket accepted, so a partial write
// resumes from its offset. Timeout errors are retried with backoff;
// any other write error is terminal for the pump.
func (b *StreamBridge) sendPump() {
	defer b.wg.Done()
	defer close(b.sendDone)
	r := b.duplex.TransportSide().Reader()
	bo := &backoff.Backoff{Min: b.retryMin, Max: b.retryMax, Factor: 2, Jitter: true}
	for {
		res, err := r.Read(b.ctx)
		if err != nil {
			if b.aborted.Load() {
				err = api.ErrBridgeClosed
			}
			r.Complete(err)
			return
		}
		written := 0
		for _, rng := range res.Ranges {
			off := 0
			for off < len(rng) {
				n, werr := b.conn.Write(rng[off:])
				off += n
				written += n
				b.txBytes.Add(int64(n))
				if werr == nil {
					bo.Reset()
					continue
				}
				var ne net.Error
				if errors.As(werr, &ne) && ne.Timeout() {
					b.retries.Inc()
					select {
					case <-time.After(bo.Duration()):
						continue
					case <-b.ctx.Done():
						r.AdvanceTo(written, written)
						if b.aborted.Load() {
							r.Complete(api.ErrBridgeClosed)
						} else {
							r.Complete(b.ctx.Err())
						}
						return
					}
				}
				b.sendErr = werr
				r.AdvanceTo(written, written)
				r.Complete(werr)
				return
			}
		}
		r.AdvanceTo(written, written)
		if res.Completed {
			b.sendErr = res.Err
			b.drained.Store(true)
			if hc, ok := b.conn.(api.WriteHalfCloser); ok {
				hc.CloseWrite()
			} else {
				b.conn.Close()
			}
			return
		}
	}
}

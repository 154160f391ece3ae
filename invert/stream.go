// File: invert/stream.go
// Package invert adapts one side of a duplex pipe into a net.Conn.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A PipeStream gives pipe-first code an ordinary blocking stream
// surface: reads and writes execute on the caller's goroutine and are
// scheduled entirely by the pipe's own flow control, with no extra
// buffering or background goroutines. Wrapping the transport side of a
// pair lets stream consumers such as crypto/tls run directly over
// in-process pipes.

package invert

import (
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/momentics/pipebridge/api"
)

// streamAddr is the placeholder endpoint address of an in-process
// stream.
type streamAddr struct{}

func (streamAddr) Network() string { return "pipe" }
func (streamAddr) String() string  { return "pipebridge" }

// PipeStream is a net.Conn whose bytes travel through one side of a
// duplex pipe pair. Read and Write may run concurrently with each
// other; each individually is serialized, matching the pipe's
// single-consumer and single-producer contracts.
type PipeStream struct {
	pipes api.DuplexPipe

	rmu sync.Mutex
	wmu sync.Mutex

	rdead pipeDeadline
	wdead pipeDeadline

	cmu    sync.Mutex
	closed bool
}

var (
	_ net.Conn            = (*PipeStream)(nil)
	_ api.StreamConn      = (*PipeStream)(nil)
	_ api.WriteHalfCloser = (*PipeStream)(nil)
)

// New wraps one side of a duplex pipe pair. The stream takes over the
// side's reader and writer; no other code may use them afterwards.
func New(p api.DuplexPipe) *PipeStream {
	return &PipeStream{
		pipes: p,
		rdead: makePipeDeadline(),
		wdead: makePipeDeadline(),
	}
}

// Read copies consumable pipe bytes into p. It blocks until at least
// one byte is available, the paired writer completes, or the read
// deadline passes.
func (s *PipeStream) Read(p []byte) (int, error) {
	s.rmu.Lock()
	defer s.rmu.Unlock()
	if s.isClosed() {
		return 0, api.ErrStreamClosed
	}
	if isClosedChan(s.rdead.wait()) {
		return 0, os.ErrDeadlineExceeded
	}
	if len(p) == 0 {
		return 0, nil
	}

	r := s.pipes.Reader()
	res, err := r.Read(chanCtx{s.rdead.wait()})
	if err != nil {
		if s.isClosed() {
			return 0, api.ErrStreamClosed
		}
		return 0, err
	}
	n := 0
	for _, rng := range res.Ranges {
		n += copy(p[n:], rng)
		if n == len(p) {
			break
		}
	}
	r.AdvanceTo(n, n)
	if n > 0 {
		return n, nil
	}
	if res.Err != nil {
		// A failed peer cannot consume our writes either.
		s.pipes.Writer().Complete(res.Err)
		return 0, res.Err
	}
	return 0, io.EOF
}

// Write pushes p into the pipe, publishing as each segment fills. It
// blocks on segment rental and on the pipe's backpressure, honoring
// the write deadline. On a deadline expiry the accepted prefix stays
// queued for the peer and a later Write continues after it.
func (s *PipeStream) Write(p []byte) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.isClosed() {
		return 0, api.ErrStreamClosed
	}
	if isClosedChan(s.wdead.wait()) {
		return 0, os.ErrDeadlineExceeded
	}

	w := s.pipes.Writer()
	ctx := chanCtx{s.wdead.wait()}
	written := 0
	for written < len(p) {
		buf, err := w.Writable(ctx, 1)
		if err != nil {
			return written, s.writeErr(err)
		}
		n := copy(buf, p[written:])
		w.Advance(n)
		written += n
		if err := w.Flush(ctx); err != nil {
			return written, s.writeErr(err)
		}
	}
	return written, nil
}

// writeErr classifies a pipe-side write failure. Terminal conditions
// also complete the read direction so no caller stays parked on a dead
// stream.
func (s *PipeStream) writeErr(err error) error {
	if s.isClosed() {
		return api.ErrStreamClosed
	}
	switch {
	case isClosedChan(s.wdead.wait()):
		return err
	default:
		s.pipes.Reader().Complete(err)
		return err
	}
}

// Close completes both directions: the peer observes end-of-stream on
// its reads and failed flushes on its writes. Idempotent.
func (s *PipeStream) Close() error {
	s.cmu.Lock()
	if s.closed {
		s.cmu.Unlock()
		return nil
	}
	s.closed = true
	s.cmu.Unlock()

	s.pipes.Writer().Complete(nil)
	s.pipes.Reader().Complete(nil)
	return nil
}

// CloseWrite completes only the write direction, delivering
// end-of-stream to the peer while reads continue.
func (s *PipeStream) CloseWrite() error {
	s.pipes.Writer().Complete(nil)
	return nil
}

func (s *PipeStream) isClosed() bool {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	return s.closed
}

func (s *PipeStream) LocalAddr() net.Addr  { return streamAddr{} }
func (s *PipeStream) RemoteAddr() net.Addr { return streamAddr{} }

// SetDeadline implements net.Conn.
func (s *PipeStream) SetDeadline(t time.Time) error {
	s.rdead.set(t)
	s.wdead.set(t)
	return nil
}

// SetReadDeadline implements net.Conn.
func (s *PipeStream) SetReadDeadline(t time.Time) error {
	s.rdead.set(t)
	return nil
}

// SetWriteDeadline implements net.Conn.
func (s *PipeStream) SetWriteDeadline(t time.Time) error {
	s.wdead.set(t)
	return nil
}

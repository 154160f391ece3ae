// File: fake/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"bytes"
	"io"
	"net"
	"sync"
)

// ErrTimeout satisfies net.Error with Timeout() == true, for driving
// transient-failure paths.
var ErrTimeout net.Error = timeoutError{}

type timeoutError struct{}

func (timeoutError) Error() string   { return "fake: i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// StreamConn is a scripted api.StreamConn. Reads deliver bytes queued
// with Feed and return io.EOF once the conn is closed; writes are
// recorded, with per-call errors injectable in order.
type StreamConn struct {
	mu        sync.Mutex
	pending   []byte
	wrote     bytes.Buffer
	writeErrs []error

	feeds     chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func NewStreamConn() *StreamConn {
	return &StreamConn{
		feeds:  make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

// Feed queues p for delivery to Read. The slice is copied.
func (c *StreamConn) Feed(p []byte) {
	c.feeds <- append([]byte(nil), p...)
}

// ScriptWriteErrors queues one error per upcoming Write call; a nil
// entry lets that call succeed.
func (c *StreamConn) ScriptWriteErrors(errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErrs = append(c.writeErrs, errs...)
}

func (c *StreamConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	if len(c.pending) > 0 {
		n := copy(p, c.pending)
		c.pending = c.pending[n:]
		c.mu.Unlock()
		return n, nil
	}
	c.mu.Unlock()

	select {
	case b := <-c.feeds:
		c.mu.Lock()
		c.pending = b
		n := copy(p, c.pending)
		c.pending = c.pending[n:]
		c.mu.Unlock()
		return n, nil
	case <-c.closed:
		return 0, io.EOF
	}
}

func (c *StreamConn) Write(p []byte) (int, error) {
	select {
	case <-c.closed:
		return 0, net.ErrClosed
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.writeErrs) > 0 {
		err := c.writeErrs[0]
		c.writeErrs = c.writeErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	c.wrote.Write(p)
	return len(p), nil
}

func (c *StreamConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// Written returns everything successfully written so far.
func (c *StreamConn) Written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.wrote.Bytes()...)
}

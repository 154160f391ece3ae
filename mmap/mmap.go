// File: mmap/mmap.go
// Package mmap feeds file contents through the pipe reader contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Reader maps a file read-only in full and serves it as an
// input-only pipe: Read yields window-capped zero-copy views straight
// over the mapping, AdvanceTo moves the cursor, and the final window
// arrives marked completed. Pipe-oriented consumers process files
// through the same cycle they use for sockets, with the page cache as
// the only buffer.

package mmap

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/momentics/pipebridge/api"
)

// DefaultWindow caps the bytes exposed by one Read call.
const DefaultWindow = 1 << 20

// maxMapSize is the largest file this platform can slice.
const maxMapSize = int(^uint(0) >> 1)

// Reader is a pipe reader over one memory-mapped file. It is
// single-consumer, like every pipe reader.
type Reader struct {
	mu       sync.Mutex
	data     []byte
	window   int
	consumed int
	examined int
	lastBase int
	lastLen  int
	closed   bool
	closeErr error
}

var _ api.PipeReader = (*Reader)(nil)

// Open maps path read-only. The file descriptor is released before
// Open returns; the mapping lives until Close.
func Open(path string) (*Reader, error) {
	return OpenWindow(path, DefaultWindow)
}

// OpenWindow is Open with an explicit per-Read window cap.
func OpenWindow(path string, window int) (*Reader, error) {
	if window <= 0 {
		return nil, fmt.Errorf("mmap: window %d: %w", window, api.ErrInvalidArgument)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size > int64(maxMapSize) {
		return nil, fmt.Errorf("mmap: %s is %d bytes, beyond the addressable range", path, size)
	}

	var data []byte
	if size > 0 {
		data, err = mapFile(f, int(size))
		if err != nil {
			return nil, fmt.Errorf("mmap: map %s: %w", path, err)
		}
	}
	return &Reader{data: data, window: window}, nil
}

// Size returns the total mapped length.
func (r *Reader) Size() int { return len(r.data) }

// Read returns the next window of unconsumed bytes as a single
// zero-copy range into the mapping. The final window is marked
// completed. Read never blocks: the whole file is always available,
// so ctx is accepted only for contract symmetry.
func (r *Reader) Read(ctx context.Context) (api.ReadResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return api.ReadResult{}, api.ErrReaderClosed
	}
	if err := ctx.Err(); err != nil {
		return api.ReadResult{}, err
	}

	rest := r.data[r.consumed:]
	view := rest
	if len(view) > r.window {
		view = view[:r.window]
	}
	r.lastBase = r.consumed
	r.lastLen = len(view)
	res := api.ReadResult{Completed: len(view) == len(rest)}
	if len(view) > 0 {
		res.Ranges = [][]byte{view}
	}
	return res, nil
}

// AdvanceTo marks, relative to the last Read result, how many bytes
// were consumed and examined. Consumed bytes are never redelivered.
func (r *Reader) AdvanceTo(consumed, examined int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if consumed < 0 || examined < consumed || examined > r.lastLen {
		panic(fmt.Sprintf("mmap: advance to consumed=%d examined=%d beyond result of %d",
			consumed, examined, r.lastLen))
	}
	nc := r.lastBase + consumed
	if nc < r.consumed {
		panic("mmap: consumed cursor moved backwards")
	}
	r.consumed = nc
	if e := r.lastBase + examined; e > r.examined {
		r.examined = e
	}
	if r.examined < r.consumed {
		r.examined = r.consumed
	}
}

// Buffered returns the number of unconsumed bytes left in the file.
func (r *Reader) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0
	}
	return len(r.data) - r.consumed
}

// Complete abandons the reader and releases the mapping. Views from
// earlier Reads are invalid afterwards.
func (r *Reader) Complete(err error) { r.Close() }

// Close unmaps the file. Idempotent; views from earlier Reads are
// invalid afterwards.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.closeErr
	}
	r.closed = true
	if r.data != nil {
		r.closeErr = unmapFile(r.data)
		r.data = nil
	}
	return r.closeErr
}

// File: api/pipe.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Duplex byte pipe contracts: single-writer/single-reader,
// flow-controlled byte queues built from pooled segments.

package api

import "context"

// ReadResult is a zero-copy view over committed-but-unconsumed bytes
// of one pipe direction, in strict write order.
type ReadResult struct {
	// Ranges holds the visible bytes as slices into pipe segments.
	// The slices stay valid until the next AdvanceTo call on the same
	// reader; they must not be written to or retained past it.
	Ranges [][]byte

	// Completed reports that no bytes will ever follow the ones in
	// Ranges: the writer called Complete.
	Completed bool

	// Err carries the terminal error given to Complete, if any.
	Err error
}

// Len returns the total number of visible bytes.
func (r *ReadResult) Len() int {
	n := 0
	for _, b := range r.Ranges {
		n += len(b)
	}
	return n
}

// PipeReader is the consumer side of one pipe direction.
//
// A reader is single-consumer: calls must not overlap. The intended
// cycle is Read, inspect, AdvanceTo, repeat.
type PipeReader interface {
	// Read returns a view over committed-but-unconsumed bytes without
	// copying. It blocks while no bytes beyond the examined position
	// exist and the pipe is not completed.
	Read(ctx context.Context) (ReadResult, error)

	// AdvanceTo marks, relative to the start of the last Read result,
	// how many bytes were consumed (never re-delivered) and how many
	// were examined. examined >= consumed. Leaving examined short of
	// the result length makes the next Read return immediately with
	// the remainder; examining everything makes it wait for new data.
	AdvanceTo(consumed, examined int)

	// Complete abandons the reading side. The writer observes it as a
	// failed flush; buffered segments are released.
	Complete(err error)

	// Buffered returns the number of committed-but-unconsumed bytes.
	Buffered() int
}

// PipeWriter is the producer side of one pipe direction.
//
// A writer is single-producer: calls must not overlap.
type PipeWriter interface {
	// Writable returns a writable tail of at least min bytes, renting
	// a new segment from the pipe's source when the current one is
	// full. min must not exceed the source's segment size.
	Writable(ctx context.Context, min int) ([]byte, error)

	// Advance commits n bytes just written into the writable tail.
	Advance(n int)

	// Flush publishes committed bytes to the reader and applies
	// backpressure: it suspends while unconsumed bytes exceed the
	// pipe's high watermark, until the reader drains below the low
	// watermark.
	Flush(ctx context.Context) error

	// Complete marks that no more data will ever be written. A nil
	// error is observed by the reader as end-of-stream, a non-nil one
	// as a terminal failure. Idempotent; the first call wins.
	Complete(err error)

	// Unflushed returns bytes advanced but not yet flushed.
	Unflushed() int
}

// DuplexPipe pairs an input byte source with an output byte sink as
// seen from one endpoint. The application view and the transport view
// of the same pipe pair are crossed: what one side's Writer produces
// is what the other side's Reader consumes.
type DuplexPipe interface {
	Reader() PipeReader
	Writer() PipeWriter
}

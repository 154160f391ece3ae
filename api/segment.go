// File: api/segment.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reference-counted memory segment and segment source contracts.
// Segments are the unit of buffer ownership for every pipe and channel
// in the library; all zero-copy views are slices into a segment.

package api

import "context"

// Segment describes a fixed-capacity, reference-counted block of bytes.
//
// A segment is owned by its pool and borrowed by exactly one writer at
// a time. The committed prefix may be shared read-only with any number
// of consumers via Retain/Release; the block returns to its pool only
// when the reference count reaches zero. The committed prefix is
// append-only: a writer never mutates bytes a consumer can see.
type Segment interface {
	// Bytes returns the committed (readable) prefix of the segment.
	Bytes() []byte

	// Free returns the uncommitted tail available for writing.
	// Only the current writer may touch it.
	Free() []byte

	// Commit marks n additional bytes of the free tail as committed.
	Commit(n int)

	// Retain adds one read reference. Each Retain requires a matching
	// Release.
	Retain()

	// Release drops one reference. At zero the block becomes eligible
	// for reuse and must not be used afterwards.
	Release()

	// Len returns the committed byte count.
	Len() int

	// Cap returns the total block capacity.
	Cap() int
}

// SegmentSource hands out segments of a fixed class size.
//
// Rent blocks when the source is exhausted (bounded capacity provides
// natural backpressure) until a segment is returned or ctx is done.
type SegmentSource interface {
	// Rent returns a fresh segment with one reference held by the
	// caller. On cancellation it returns ctx.Err() and no segment.
	Rent(ctx context.Context) (Segment, error)

	// SegmentSize reports the capacity of segments this source vends.
	SegmentSize() int
}

// PoolStats aggregates segment accounting for one pool.
type PoolStats struct {
	Rented      int64 // segments handed out since start/reset
	Returned    int64 // segments recycled at refcount zero
	Outstanding int64 // currently held by callers
	RentWaits   int64 // Rent calls that had to block
}

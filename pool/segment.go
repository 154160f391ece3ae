// File: pool/segment.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reference-counted fixed-capacity segment. One writer appends through
// Free/Commit; readers hold views via Retain/Release. The committed prefix
// is append-only while any view is outstanding, so views never observe
// mutation.

package pool

import (
	"fmt"
	"sync/atomic"

	"github.com/momentics/pipebridge/api"
)

// segment is the pool-owned api.Segment implementation.
type segment struct {
	buf   []byte
	n     int
	refs  atomic.Int32
	owner *SegmentPool
}

var _ api.Segment = (*segment)(nil)

func newSegment(size int, owner *SegmentPool) *segment {
	s := &segment{
		buf:   make([]byte, size),
		owner: owner,
	}
	s.refs.Store(1)
	return s
}

// Bytes returns the committed prefix.
func (s *segment) Bytes() []byte { return s.buf[:s.n] }

// Free returns the writable tail after the committed prefix.
func (s *segment) Free() []byte { return s.buf[s.n:] }

// Commit extends the committed prefix by n bytes previously written into
// Free. Committing more than the free tail holds is a caller bug.
func (s *segment) Commit(n int) {
	if n < 0 || s.n+n > len(s.buf) {
		panic(fmt.Sprintf("pool: commit %d bytes with %d free", n, len(s.buf)-s.n))
	}
	s.n += n
}

// Retain adds a view.
func (s *segment) Retain() { s.refs.Add(1) }

// Release drops one view. At refcount zero the segment re-enters the
// owning pool.
func (s *segment) Release() {
	switch refs := s.refs.Add(-1); {
	case refs == 0:
		s.owner.recycle(s)
	case refs < 0:
		panic("pool: segment released below zero refcount")
	}
}

// Len reports the committed byte count.
func (s *segment) Len() int { return s.n }

// Cap reports the fixed capacity.
func (s *segment) Cap() int { return len(s.buf) }

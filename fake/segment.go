// File: fake/segment.go
// Package fake provides controllable test doubles for the api contracts.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"context"
	"sync"

	"github.com/momentics/pipebridge/api"
)

// Segment is an in-memory api.Segment with observable reference
// counting. Unlike pooled segments it is never recycled, so tests can
// inspect it after release.
type Segment struct {
	mu   sync.Mutex
	buf  []byte
	n    int
	refs int
}

var _ api.Segment = (*Segment)(nil)

// NewSegment creates a segment with the given capacity and one
// reference held.
func NewSegment(capacity int) *Segment {
	return &Segment{buf: make([]byte, capacity), refs: 1}
}

func (s *Segment) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf[:s.n]
}

func (s *Segment) Free() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf[s.n:]
}

func (s *Segment) Commit(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.n+n > len(s.buf) {
		panic("fake: commit beyond segment capacity")
	}
	s.n += n
}

func (s *Segment) Retain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs++
}

func (s *Segment) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs--
	if s.refs < 0 {
		panic("fake: segment released below zero")
	}
}

func (s *Segment) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

func (s *Segment) Cap() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Refs reports the current reference count.
func (s *Segment) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

// SegmentSource vends fake segments without blocking and records
// every rental. Errors can be injected per call.
type SegmentSource struct {
	segSize int

	mu       sync.Mutex
	rented   int
	failWith error
	handed   []*Segment
}

var _ api.SegmentSource = (*SegmentSource)(nil)

// NewSegmentSource creates a source vending segments of segSize bytes.
func NewSegmentSource(segSize int) *SegmentSource {
	return &SegmentSource{segSize: segSize}
}

// FailNext makes every following Rent return err until cleared with a
// nil err.
func (s *SegmentSource) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *SegmentSource) Rent(ctx context.Context) (api.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	s.rented++
	seg := NewSegment(s.segSize)
	s.handed = append(s.handed, seg)
	return seg, nil
}

func (s *SegmentSource) SegmentSize() int { return s.segSize }

// Rented reports how many segments were handed out.
func (s *SegmentSource) Rented() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rented
}

// Leaked reports how many handed-out segments still hold references.
func (s *SegmentSource) Leaked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	leaked := 0
	for _, seg := range s.handed {
		if seg.Refs() > 0 {
			leaked++
		}
	}
	return leaked
}

// File: pipe/pipe.go
// Package pipe implements the duplex byte pipe at the center of pipebridge.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Pipe is one unidirectional byte stream between a single writer and a
// single reader, buffered in pooled segments. Bytes become visible to the
// reader at Flush, in write order, each delivered exactly once. One mutex
// guards the cursor handoff; Complete calls may come from any goroutine,
// so every parked operation is woken on either side completing.
//
// Segment ownership: the writer holds one reference to every segment it
// may still fill; the queue holds one reference to every published
// segment. A segment that is both queued and still being filled carries
// two references. References drop at roll, pop, and Complete, so both
// sides completing always returns every segment to its pool.

package pipe

import (
	"context"
	"fmt"
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/pipebridge/api"
	"github.com/momentics/pipebridge/core/concurrency"
)

// flushEntry is a rolled segment waiting for the next Flush: add bytes
// written beyond its committed length, queued whether the reader side
// already holds it.
type flushEntry struct {
	seg    api.Segment
	add    int
	queued bool
}

// Pipe is a single-direction byte pipe. It implements both api.PipeReader
// and api.PipeWriter; use each interface from one goroutine at a time.
type Pipe struct {
	source    api.SegmentSource
	highWater int
	lowWater  int

	readable *concurrency.Signal
	writable *concurrency.Signal

	mu   sync.Mutex
	segs *queue.Queue // of api.Segment, oldest first

	// Absolute byte cursors: flushed >= examined >= consumed.
	flushed  int64
	consumed int64
	examined int64

	readOffset   int   // consumed bytes within the oldest queued segment
	lastReadBase int64 // consumed cursor at the time of the last Read
	lastReadLen  int

	writerDone bool
	writerErr  error
	readerDone bool
	readerErr  error

	paused      bool // writer parked in Flush awaiting drain
	flushPauses int64

	// Writer-side state, all mutated under mu: the reader consults wtail
	// and wqueued for the pop decision, and a cross-goroutine Complete
	// must not race Advance.
	wtail     api.Segment
	wqueued   bool
	wdirty    int
	wfull     []flushEntry
	unflushed int
}

// Reader returns the consuming view of this pipe direction.
func (p *Pipe) Reader() api.PipeReader { return readerView{p} }

// Writer returns the producing view of this pipe direction.
func (p *Pipe) Writer() api.PipeWriter { return writerView{p} }

// New creates a pipe drawing segments from source. Flush suspends once
// unread bytes reach highWater and resumes when the reader drains to
// lowWater. Non-positive watermarks default to 4 segments and half of
// highWater respectively.
func New(source api.SegmentSource, highWater, lowWater int) *Pipe {
	if source == nil {
		panic("pipe: nil segment source")
	}
	if highWater <= 0 {
		highWater = 4 * source.SegmentSize()
	}
	if lowWater <= 0 || lowWater >= highWater {
		lowWater = highWater / 2
	}
	return &Pipe{
		source:    source,
		highWater: highWater,
		lowWater:  lowWater,
		readable:  concurrency.NewSignal(),
		writable:  concurrency.NewSignal(),
		segs:      queue.New(),
	}
}

// Writable returns a span of at least min free bytes to write into,
// rolling to a freshly rented segment when the current tail is too full.
// min above the segment class size fails with api.ErrSegmentTooSmall.
// Renting blocks when the pool is exhausted, which is the pipe's second
// backpressure bound after the flush watermark.
func (p *Pipe) Writable(ctx context.Context, min int) ([]byte, error) {
	if min <= 0 {
		min = 1
	}
	if min > p.source.SegmentSize() {
		return nil, fmt.Errorf("%w: need %d, segment class is %d",
			api.ErrSegmentTooSmall, min, p.source.SegmentSize())
	}

	p.mu.Lock()
	if p.writerDone {
		p.mu.Unlock()
		return nil, api.ErrPipeCompleted
	}
	if p.readerDone {
		err := p.readerAbandonedLocked()
		p.mu.Unlock()
		return nil, err
	}
	if p.wtail != nil {
		span := p.wtail.Free()[p.wdirty:]
		if len(span) >= min {
			p.mu.Unlock()
			return span, nil
		}
		p.wfull = append(p.wfull, flushEntry{seg: p.wtail, add: p.wdirty, queued: p.wqueued})
		p.wtail, p.wdirty, p.wqueued = nil, 0, false
	}
	p.mu.Unlock()

	seg, err := p.source.Rent(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipe: rent segment: %w", err)
	}

	p.mu.Lock()
	switch {
	case p.writerDone:
		p.mu.Unlock()
		seg.Release()
		return nil, api.ErrPipeCompleted
	case p.readerDone:
		err := p.readerAbandonedLocked()
		p.mu.Unlock()
		seg.Release()
		return nil, err
	}
	p.wtail = seg
	p.mu.Unlock()
	return seg.Free(), nil
}

// Advance marks n bytes of the last Writable span as written. The bytes
// stay invisible to the reader until Flush. After a concurrent Complete
// the bytes are dropped; the next Flush reports the terminal state.
func (p *Pipe) Advance(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writerDone || p.readerDone {
		return
	}
	if p.wtail == nil || n < 0 || n > len(p.wtail.Free())-p.wdirty {
		panic(fmt.Sprintf("pipe: advance %d beyond writable span", n))
	}
	p.wdirty += n
	p.unflushed += n
}

// Flush publishes all advanced bytes to the reader. When unread bytes
// reach the high watermark it suspends until the reader drains to the low
// watermark, ctx ends, or the reader completes.
func (p *Pipe) Flush(ctx context.Context) error {
	p.mu.Lock()
	if p.writerDone {
		p.mu.Unlock()
		return api.ErrPipeCompleted
	}
	if p.readerDone {
		err := p.readerAbandonedLocked()
		p.mu.Unlock()
		return err
	}

	p.publishLocked()
	p.readable.Raise()

	if p.flushed-p.consumed >= int64(p.highWater) {
		p.flushPauses++
		for p.flushed-p.consumed > int64(p.lowWater) {
			if p.writerDone {
				p.paused = false
				p.mu.Unlock()
				return api.ErrPipeCompleted
			}
			if p.readerDone {
				err := p.readerAbandonedLocked()
				p.paused = false
				p.mu.Unlock()
				return err
			}
			p.paused = true
			p.mu.Unlock()
			err := p.writable.Wait(ctx)
			p.mu.Lock()
			if err != nil {
				p.paused = false
				p.mu.Unlock()
				return err
			}
		}
		p.paused = false
	}
	p.mu.Unlock()
	return nil
}

// Unflushed reports bytes advanced but not yet flushed.
func (p *Pipe) Unflushed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unflushed
}

// CompleteWriter marks the write side finished. Advanced bytes are
// published first, so a graceful completion never truncates output. err
// is surfaced to the reader as the terminal result; nil means clean EOF.
// Idempotent.
func (p *Pipe) CompleteWriter(err error) {
	p.mu.Lock()
	if p.writerDone {
		p.mu.Unlock()
		return
	}
	if p.readerDone {
		p.dropWriterSegsLocked()
	} else {
		p.publishLocked()
	}
	p.releaseTailLocked()
	p.writerDone = true
	p.writerErr = err
	p.readable.Raise()
	p.writable.Raise()
	p.mu.Unlock()
}

// Read blocks until unexamined bytes arrive or the writer completes, then
// returns every committed-but-unconsumed byte range in write order. The
// ranges alias pooled segment memory and stay valid until the next
// AdvanceTo or CompleteReader call.
func (p *Pipe) Read(ctx context.Context) (api.ReadResult, error) {
	p.mu.Lock()
	for {
		if p.readerDone {
			p.mu.Unlock()
			return api.ReadResult{}, api.ErrReaderClosed
		}
		if p.flushed > p.examined || p.writerDone {
			res := p.resultLocked()
			p.mu.Unlock()
			return res, nil
		}
		p.mu.Unlock()
		if err := p.readable.Wait(ctx); err != nil {
			return api.ReadResult{}, err
		}
		p.mu.Lock()
	}
}

// AdvanceTo records progress over the last Read result: consumed bytes
// are released for reuse, examined bytes suppress re-delivery until more
// data arrives. Both are relative to the start of the last result;
// 0 <= consumed <= examined <= result length.
func (p *Pipe) AdvanceTo(consumed, examined int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readerDone {
		return
	}
	if consumed < 0 || examined < consumed || examined > p.lastReadLen {
		panic(fmt.Sprintf("pipe: advance to consumed=%d examined=%d beyond result of %d",
			consumed, examined, p.lastReadLen))
	}

	newConsumed := p.lastReadBase + int64(consumed)
	if newConsumed < p.consumed {
		panic("pipe: consumed cursor moved backwards")
	}
	d := int(newConsumed - p.consumed)
	p.consumed = newConsumed
	if e := p.lastReadBase + int64(examined); e > p.examined {
		p.examined = e
	}
	if p.examined < p.consumed {
		p.examined = p.consumed
	}

	for d > 0 {
		first := p.segs.Peek().(api.Segment)
		avail := first.Len() - p.readOffset
		if d < avail {
			p.readOffset += d
			break
		}
		d -= avail
		if p.writerHoldsLocked(first) {
			// The writer may still commit bytes into this segment; keep
			// it queued with its committed bytes marked consumed.
			p.readOffset = first.Len()
			continue
		}
		p.segs.Remove()
		p.readOffset = 0
		first.Release()
	}

	if p.paused && p.flushed-p.consumed <= int64(p.lowWater) {
		p.writable.Raise()
	}
}

// Buffered reports flushed-but-unconsumed bytes.
func (p *Pipe) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.flushed - p.consumed)
}

// FlushPauses reports how many times Flush crossed the high watermark and
// suspended.
func (p *Pipe) FlushPauses() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushPauses
}

// CompleteReader abandons the read side and releases every queued
// segment. A paused or future Flush observes api.ErrReaderClosed carrying
// err. Idempotent.
func (p *Pipe) CompleteReader(err error) {
	p.mu.Lock()
	if p.readerDone {
		p.mu.Unlock()
		return
	}
	p.readerDone = true
	p.readerErr = err
	// Only the queue references drop here; the writer still releases its
	// own on its next call.
	for p.segs.Length() > 0 {
		p.segs.Remove().(api.Segment).Release()
	}
	p.readOffset = 0
	p.readable.Raise()
	p.writable.Raise()
	p.mu.Unlock()
}

// publishLocked commits and enqueues all pending writer bytes.
func (p *Pipe) publishLocked() {
	for _, f := range p.wfull {
		if f.add > 0 {
			f.seg.Commit(f.add)
			p.flushed += int64(f.add)
		}
		if f.queued {
			// Rolled and already visible: the writer reference drops,
			// the queue reference stays until the reader pops it.
			f.seg.Release()
			continue
		}
		if f.seg.Len() > 0 {
			p.segs.Add(f.seg)
		} else {
			f.seg.Release()
		}
	}
	p.wfull = p.wfull[:0]

	if p.wtail != nil && p.wdirty > 0 {
		p.wtail.Commit(p.wdirty)
		p.flushed += int64(p.wdirty)
		p.wdirty = 0
		if !p.wqueued {
			p.wtail.Retain()
			p.segs.Add(p.wtail)
			p.wqueued = true
		}
	}
	p.unflushed = 0
}

// releaseTailLocked drops the writer's reference to the tail segment.
func (p *Pipe) releaseTailLocked() {
	if p.wtail != nil {
		seg := p.wtail
		p.wtail, p.wdirty, p.wqueued = nil, 0, false
		seg.Release()
	}
}

// dropWriterSegsLocked releases pending writer segments without
// publishing; used when the reader abandoned first.
func (p *Pipe) dropWriterSegsLocked() {
	for _, f := range p.wfull {
		f.seg.Release()
	}
	p.wfull = p.wfull[:0]
	p.unflushed = 0
	p.wdirty = 0
}

// writerHoldsLocked reports whether the writer may still commit bytes
// into seg: it is the tail, or a rolled segment awaiting Flush. At most
// one such segment is ever queued, and it is the newest.
func (p *Pipe) writerHoldsLocked(seg api.Segment) bool {
	if seg == p.wtail {
		return true
	}
	for _, f := range p.wfull {
		if f.seg == seg {
			return true
		}
	}
	return false
}

func (p *Pipe) readerAbandonedLocked() error {
	if p.readerErr != nil {
		return fmt.Errorf("%w: %v", api.ErrReaderClosed, p.readerErr)
	}
	return api.ErrReaderClosed
}

// resultLocked snapshots the unconsumed ranges.
func (p *Pipe) resultLocked() api.ReadResult {
	res := api.ReadResult{
		Completed: p.writerDone,
		Err:       p.writerErr,
	}
	for i := 0; i < p.segs.Length(); i++ {
		seg := p.segs.Get(i).(api.Segment)
		b := seg.Bytes()
		if i == 0 {
			b = b[p.readOffset:]
		}
		if len(b) > 0 {
			res.Ranges = append(res.Ranges, b)
		}
	}
	p.lastReadBase = p.consumed
	p.lastReadLen = int(p.flushed - p.consumed)
	return res
}

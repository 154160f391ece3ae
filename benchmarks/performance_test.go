// Package benchmarks
// Author: momentics <momentics@gmail.com>
//
// Performance benchmarks for pipebridge components.

package benchmarks

import (
	"context"
	"testing"

	"github.com/momentics/pipebridge/core/concurrency"
	"github.com/momentics/pipebridge/facade"
	"github.com/momentics/pipebridge/marshal"
	"github.com/momentics/pipebridge/pipe"
	"github.com/momentics/pipebridge/pool"
)

// BenchmarkSegmentRentRelease measures pool churn under parallel load.
func BenchmarkSegmentRentRelease(b *testing.B) {
	p := pool.NewSegmentPool(4096, 256)
	defer p.Close()
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			seg, _ := p.Rent(ctx)
			seg.Release()
		}
	})
}

// BenchmarkMPMCQueueThroughput measures the lock-free queue under contention.
func BenchmarkMPMCQueueThroughput(b *testing.B) {
	q := concurrency.NewMPMCQueue[int](1024)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if !q.Enqueue(i) {
				q.Dequeue()
				q.Enqueue(i)
			}
			i++
		}
	})
}

// BenchmarkPipeThroughput streams 4 KiB chunks through a pipe with a
// concurrent draining reader.
func BenchmarkPipeThroughput(b *testing.B) {
	src := pool.NewSegmentPool(64*1024, 64)
	defer src.Close()
	p := pipe.New(src, 256*1024, 128*1024)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			res, err := p.Read(ctx)
			if err != nil {
				return
			}
			n := 0
			for _, rng := range res.Ranges {
				n += len(rng)
			}
			p.AdvanceTo(n, n)
			if res.Completed {
				return
			}
		}
	}()

	chunk := make([]byte, 4096)
	b.SetBytes(int64(len(chunk)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf, err := p.Writable(ctx, len(chunk))
		if err != nil {
			b.Fatal(err)
		}
		copy(buf[:len(chunk)], chunk)
		p.Advance(len(chunk))
		if err := p.Flush(ctx); err != nil {
			b.Fatal(err)
		}
	}
	b.StopTimer()
	p.CompleteWriter(nil)
	<-done
}

// BenchmarkJSONFrameEncode measures typed frame encoding into a reused
// destination buffer.
func BenchmarkJSONFrameEncode(b *testing.B) {
	type sample struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	codec := marshal.JSON[sample]{}
	v := sample{ID: 42, Name: "pipebridge"}
	dst := make([]byte, 256)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := codec.Encode(v, dst); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkFacadePoolAccess measures segment access through the facade's
// shared manager.
func BenchmarkFacadePoolAccess(b *testing.B) {
	pb, err := facade.New(facade.DefaultConfig())
	if err != nil {
		b.Fatal(err)
	}
	if err := pb.Start(); err != nil {
		b.Fatal(err)
	}
	defer pb.Stop()
	src := pb.Pools().GetPool(1024)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		seg, err := src.Rent(ctx)
		if err != nil {
			b.Fatal(err)
		}
		seg.Release()
	}
}

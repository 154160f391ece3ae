package concurrency

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMPMCQueue_Concurrent(t *testing.T) {
	q := NewMPMCQueue[int](1024)
	producers := 10
	consumers := 10
	itemsPerProducer := 10000

	var wg sync.WaitGroup
	var sentSum int64
	var receivedSum int64

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			for i := 0; i < itemsPerProducer; i++ {
				val := pid*itemsPerProducer + i + 1
				for !q.Enqueue(val) {
					runtime.Gosched()
				}
				atomic.AddInt64(&sentSum, int64(val))
			}
		}(p)
	}

	var receivedCount int64
	totalItems := int64(producers * itemsPerProducer)

	consumerWg := sync.WaitGroup{}
	for c := 0; c < consumers; c++ {
		consumerWg.Add(1)
		go func() {
			defer consumerWg.Done()
			for {
				if val, ok := q.Dequeue(); ok {
					atomic.AddInt64(&receivedSum, int64(val))
					if atomic.AddInt64(&receivedCount, 1) == totalItems {
						return
					}
				} else {
					if atomic.LoadInt64(&receivedCount) >= totalItems {
						return
					}
					runtime.Gosched()
				}
			}
		}()
	}

	wg.Wait()

	done := make(chan struct{})
	go func() {
		consumerWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if sentSum != receivedSum {
			t.Errorf("Checksum mismatch: sent %d, received %d", sentSum, receivedSum)
		}
	case <-time.After(5 * time.Second):
		t.Errorf("Timeout waiting for consumers. Received %d/%d", atomic.LoadInt64(&receivedCount), totalItems)
	}
}

func TestMPMCQueue_FullAndEmpty(t *testing.T) {
	q := NewMPMCQueue[string](4)
	if got := q.Cap(); got != 4 {
		t.Fatalf("Cap() = %d, want 4", got)
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("Dequeue on empty queue reported ok")
	}
	for i := 0; i < 4; i++ {
		if !q.Enqueue("x") {
			t.Fatalf("Enqueue %d failed below capacity", i)
		}
	}
	if q.Enqueue("overflow") {
		t.Fatal("Enqueue succeeded on full queue")
	}
	if got := q.Len(); got != 4 {
		t.Fatalf("Len() = %d, want 4", got)
	}
	for i := 0; i < 4; i++ {
		if _, ok := q.Dequeue(); !ok {
			t.Fatalf("Dequeue %d failed on non-empty queue", i)
		}
	}
	if got := q.Len(); got != 0 {
		t.Fatalf("Len() after drain = %d, want 0", got)
	}
}

func TestMPMCQueue_RoundsCapacityUp(t *testing.T) {
	q := NewMPMCQueue[int](5)
	if got := q.Cap(); got != 8 {
		t.Fatalf("Cap() = %d, want 8", got)
	}
	for i := 0; i < 8; i++ {
		if !q.Enqueue(i) {
			t.Fatalf("Enqueue %d failed below rounded capacity", i)
		}
	}
	for i := 0; i < 8; i++ {
		v, ok := q.Dequeue()
		if !ok || v != i {
			t.Fatalf("Dequeue = (%d, %v), want (%d, true)", v, ok, i)
		}
	}
}

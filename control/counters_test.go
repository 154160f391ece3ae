package control

import (
	"sync"
	"testing"
)

func TestCounterSet_GetOrCreate(t *testing.T) {
	cs := NewCounterSet()
	a := cs.Counter("pool.rented")
	b := cs.Counter("pool.rented")
	if a != b {
		t.Fatal("Counter returned distinct instances for the same name")
	}
	a.Inc()
	a.Add(2)
	if got := b.Load(); got != 3 {
		t.Fatalf("Load() = %d, want 3", got)
	}
}

func TestCounterSet_SnapshotAndReset(t *testing.T) {
	cs := NewCounterSet()
	cs.Counter("a").Add(5)
	cs.Counter("b").Add(7)

	snap := cs.Snapshot()
	if snap["a"] != 5 || snap["b"] != 7 {
		t.Fatalf("Snapshot() = %v, want a=5 b=7", snap)
	}

	c := cs.Counter("a")
	cs.Reset()
	if got := c.Load(); got != 0 {
		t.Fatalf("Load() after Reset = %d, want 0", got)
	}
	// Pointers handed out before Reset keep working.
	c.Inc()
	if got := cs.Snapshot()["a"]; got != 1 {
		t.Fatalf("Snapshot()[a] after Reset+Inc = %d, want 1", got)
	}
}

func TestCounterSet_ConcurrentCreate(t *testing.T) {
	cs := NewCounterSet()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				cs.Counter("shared").Inc()
			}
		}()
	}
	wg.Wait()
	if got := cs.Counter("shared").Load(); got != 8000 {
		t.Fatalf("Load() = %d, want 8000", got)
	}
}

// control/counters.go
// Author: momentics <momentics@gmail.com>
//
// Counter registry for the data-plane components. Hot paths hold a
// *Counter and bump it with one atomic add; the registry is only locked
// when a counter is first created or a snapshot is taken.

package control

import (
	"sync"
	"sync/atomic"
)

// Counter is a monotonic int64 updated without locks.
type Counter struct {
	v atomic.Int64
}

// Add increments the counter by d.
func (c *Counter) Add(d int64) { c.v.Add(d) }

// Inc increments the counter by one.
func (c *Counter) Inc() { c.v.Add(1) }

// Load returns the current value.
func (c *Counter) Load() int64 { return c.v.Load() }

// CounterSet is a named collection of counters shared between the
// data-plane components and the control surface.
type CounterSet struct {
	mu       sync.RWMutex
	counters map[string]*Counter
}

// NewCounterSet creates an empty counter registry.
func NewCounterSet() *CounterSet {
	return &CounterSet{
		counters: make(map[string]*Counter),
	}
}

// Counter returns the counter registered under name, creating it on first
// use. The returned pointer stays valid across Reset.
func (cs *CounterSet) Counter(name string) *Counter {
	cs.mu.RLock()
	c, ok := cs.counters[name]
	cs.mu.RUnlock()
	if ok {
		return c
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if c, ok = cs.counters[name]; ok {
		return c
	}
	c = &Counter{}
	cs.counters[name] = c
	return c
}

// Snapshot returns the current value of every registered counter.
func (cs *CounterSet) Snapshot() map[string]int64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make(map[string]int64, len(cs.counters))
	for name, c := range cs.counters {
		out[name] = c.Load()
	}
	return out
}

// Reset zeroes every registered counter in place.
func (cs *CounterSet) Reset() {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	for _, c := range cs.counters {
		c.v.Store(0)
	}
}

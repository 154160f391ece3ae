// File: pool/manager.go
// Author: momentics <momentics@gmail.com>
//
// Size-class pool manager with transparent pool creation. All public API
// is size-based; callers never deal with class rounding themselves.

package pool

import (
	"sync"

	"github.com/momentics/pipebridge/api"
)

// minSegmentSize floors the class ladder so tiny requests still get a
// page-friendly segment.
const minSegmentSize = 4 * 1024

// Manager provides per-size-class segment pools.
type Manager struct {
	mu       sync.RWMutex
	pools    map[int]*SegmentPool // key: class size in bytes
	capacity int
}

// NewManager creates a manager whose pools hold at most capacity segments
// each. Non-positive capacity falls back to DefaultPoolCapacity.
func NewManager(capacity int) *Manager {
	if capacity <= 0 {
		capacity = DefaultPoolCapacity
	}
	return &Manager{
		pools:    make(map[int]*SegmentPool),
		capacity: capacity,
	}
}

// sizeClass returns the smallest power-of-two class that fits size.
func sizeClass(size int) int {
	class := minSegmentSize
	for class < size {
		class <<= 1
	}
	return class
}

// GetPool obtains or creates the pool for the smallest class >= size.
// Non-positive size means "the default class".
func (m *Manager) GetPool(size int) *SegmentPool {
	if size <= 0 {
		size = DefaultSegmentSize
	}
	class := sizeClass(size)

	m.mu.RLock()
	p, ok := m.pools[class]
	m.mu.RUnlock()
	if ok {
		return p
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pools[class]; ok {
		return p
	}
	p = NewSegmentPool(class, m.capacity)
	m.pools[class] = p
	return p
}

// Stats aggregates accounting across all classes, keyed by class size.
func (m *Manager) Stats() map[int]api.PoolStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int]api.PoolStats, len(m.pools))
	for class, p := range m.pools {
		out[class] = p.Stats()
	}
	return out
}

// Close closes every pool. Idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pools {
		p.Close()
	}
}

package pool

import (
	"sync"
)

var (
	defaultOnce sync.Once
	defaultMgr  *Manager
)

// DefaultManager returns a process-wide Manager so independent components
// share segment pools instead of fragmenting allocations.
func DefaultManager() *Manager {
	defaultOnce.Do(func() {
		defaultMgr = NewManager(DefaultPoolCapacity)
	})
	return defaultMgr
}

// DefaultPool is a shortcut to fetch a size-class pool from the default
// manager.
func DefaultPool(size int) *SegmentPool {
	return DefaultManager().GetPool(size)
}

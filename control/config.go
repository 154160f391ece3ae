// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe configuration store with snapshot reads and reload listeners.

package control

import (
	"sync"
)

// ConfigStore is a dynamic key/value map with snapshot reads and listener
// support. Components read it at construction time; listeners let
// long-lived components pick up later changes.
type ConfigStore struct {
	mu        sync.RWMutex
	values    map[string]any
	listeners []func()
}

// NewConfigStore initializes an empty config store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		values: make(map[string]any),
	}
}

// Snapshot returns a copy of all config values.
func (cs *ConfigStore) Snapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make(map[string]any, len(cs.values))
	for k, v := range cs.values {
		out[k] = v
	}
	return out
}

// Get returns a single value and whether it is present.
func (cs *ConfigStore) Get(key string) (any, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	v, ok := cs.values[key]
	return v, ok
}

// Set merges new values and notifies listeners. Listeners run on the
// calling goroutine after the lock is released, so they may read the store.
func (cs *ConfigStore) Set(newValues map[string]any) {
	cs.mu.Lock()
	for k, v := range newValues {
		cs.values[k] = v
	}
	listeners := make([]func(), len(cs.listeners))
	copy(listeners, cs.listeners)
	cs.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// OnReload registers a listener invoked after every Set.
func (cs *ConfigStore) OnReload(fn func()) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}

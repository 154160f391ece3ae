// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// Debug probe registry for internal inspection. Probes are lazy: each is
// a closure evaluated only when the state dump is requested.

package control

import "sync"

// DebugProbes holds named probe functions.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

// NewDebugProbes creates an empty probe registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{
		probes: make(map[string]func() any),
	}
}

// RegisterProbe inserts a named debug hook. Registering a name twice
// replaces the earlier probe.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.probes[name] = fn
}

// Names returns the registered probe names.
func (dp *DebugProbes) Names() []string {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	out := make([]string, 0, len(dp.probes))
	for name := range dp.probes {
		out = append(out, name)
	}
	return out
}

// DumpState evaluates every probe and returns the collected values.
func (dp *DebugProbes) DumpState() map[string]any {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	out := make(map[string]any, len(dp.probes))
	for name, fn := range dp.probes {
		out[name] = fn()
	}
	return out
}

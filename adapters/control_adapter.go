// File: adapters/control_adapter.go
// Package adapters composes control primitives behind the api surfaces.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package adapters

import (
	"github.com/momentics/pipebridge/api"
	"github.com/momentics/pipebridge/control"
)

// ControlAdapter implements api.Control over the control package's
// store, counter set and debug probes. One adapter typically serves a
// whole process; components share its counter set.
type ControlAdapter struct {
	config   *control.ConfigStore
	counters *control.CounterSet
	debug    *control.DebugProbes
}

var _ api.Control = (*ControlAdapter)(nil)

func NewControlAdapter() *ControlAdapter {
	a := &ControlAdapter{
		config:   control.NewConfigStore(),
		counters: control.NewCounterSet(),
		debug:    control.NewDebugProbes(),
	}
	control.RegisterPlatformProbes(a.debug)
	return a
}

// Counters exposes the shared counter set so transports and channels
// can account into the same snapshot.
func (a *ControlAdapter) Counters() *control.CounterSet { return a.counters }

func (a *ControlAdapter) GetConfig() map[string]any {
	return a.config.Snapshot()
}

func (a *ControlAdapter) SetConfig(cfg map[string]any) error {
	a.config.Set(cfg)
	return nil
}

// Stats merges counter values with debug probe output; probes are
// namespaced under "debug.".
func (a *ControlAdapter) Stats() map[string]any {
	combined := make(map[string]any)
	for k, v := range a.counters.Snapshot() {
		combined[k] = v
	}
	for k, v := range a.debug.DumpState() {
		combined["debug."+k] = v
	}
	return combined
}

func (a *ControlAdapter) ResetStats() {
	a.counters.Reset()
}

func (a *ControlAdapter) OnReload(fn func()) {
	a.config.OnReload(fn)
}

func (a *ControlAdapter) RegisterDebugProbe(name string, fn func() any) {
	a.debug.RegisterProbe(name, fn)
}

// File: api/control.go
// Package api defines Control interface.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Control exposes dynamic configuration and the diagnostics surface:
// segment accounting, backpressure pauses, decode failures. Snapshots
// and resets are observability helpers, never part of the transport
// correctness contract.
type Control interface {
	GetConfig() map[string]any
	SetConfig(cfg map[string]any) error
	Stats() map[string]any
	ResetStats()
	OnReload(fn func())
	RegisterDebugProbe(name string, fn func() any)
}

package adapters_test

import (
	"testing"

	"github.com/momentics/pipebridge/adapters"
)

func TestControlAdapter_ConfigRoundTrip(t *testing.T) {
	ctrl := adapters.NewControlAdapter()
	if cfg := ctrl.GetConfig(); len(cfg) != 0 {
		t.Fatalf("initial config = %v, want empty", cfg)
	}
	if err := ctrl.SetConfig(map[string]any{"k": 1}); err != nil {
		t.Fatal(err)
	}
	if got := ctrl.GetConfig()["k"]; got != 1 {
		t.Fatalf("config k = %v, want 1", got)
	}

	called := false
	ctrl.OnReload(func() { called = true })
	if err := ctrl.SetConfig(map[string]any{"x": 2}); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Fatal("reload hook not called on SetConfig")
	}
	// Set merges; earlier keys survive.
	if got := ctrl.GetConfig()["k"]; got != 1 {
		t.Fatalf("config k after merge = %v, want 1", got)
	}
}

func TestControlAdapter_StatsAndReset(t *testing.T) {
	ctrl := adapters.NewControlAdapter()
	ctrl.Counters().Counter("bridge.rx_bytes").Add(7)

	stats := ctrl.Stats()
	if got := stats["bridge.rx_bytes"]; got != int64(7) {
		t.Fatalf("rx_bytes = %v, want 7", got)
	}
	if _, ok := stats["debug.platform.cpus"]; !ok {
		t.Fatal("platform probes missing from Stats")
	}

	ctrl.ResetStats()
	if got := ctrl.Stats()["bridge.rx_bytes"]; got != int64(0) {
		t.Fatalf("rx_bytes after reset = %v, want 0", got)
	}
}

func TestControlAdapter_DebugProbes(t *testing.T) {
	ctrl := adapters.NewControlAdapter()
	ctrl.RegisterDebugProbe("queue.depth", func() any { return 42 })
	if got := ctrl.Stats()["debug.queue.depth"]; got != 42 {
		t.Fatalf("probe value = %v, want 42", got)
	}
}

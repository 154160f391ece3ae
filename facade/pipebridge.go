// File: facade/pipebridge.go
// Unified facade layer for the pipebridge library.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// This file defines the PipeBridge struct, which aggregates the core
// components of the library behind a single facade. It initializes the
// segment pool manager and control surface from immutable
// configuration and exposes constructors for the transport pieces:
// duplex pipes, socket bridges, inverted streams, datagram frame
// channels and memory-mapped readers, all sharing one pool manager and
// one counter set.

package facade

import (
	"log"
	"sync"
	"time"

	"github.com/momentics/pipebridge/adapters"
	"github.com/momentics/pipebridge/api"
	"github.com/momentics/pipebridge/datagram"
	"github.com/momentics/pipebridge/invert"
	"github.com/momentics/pipebridge/mmap"
	"github.com/momentics/pipebridge/pipe"
	"github.com/momentics/pipebridge/pool"
	"github.com/momentics/pipebridge/transport"
)

// PipeBridge is the main facade type. It implements
// api.GracefulShutdown to allow unified shutdown logic.
type PipeBridge struct {
	control *adapters.ControlAdapter
	pools   *pool.Manager

	config  *Config
	mu      sync.Mutex
	started bool
}

var _ api.GracefulShutdown = (*PipeBridge)(nil)

// New constructs a PipeBridge with the given configuration. A nil cfg
// selects DefaultConfig. The configuration is published through the
// Control surface for observability.
func New(cfg *Config) (*PipeBridge, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	pb := &PipeBridge{
		control: adapters.NewControlAdapter(),
		pools:   pool.NewManager(cfg.PoolCapacity),
		config:  cfg,
	}
	pb.control.SetConfig(map[string]any{
		"segment_size":   cfg.SegmentSize,
		"pool_capacity":  cfg.PoolCapacity,
		"high_watermark": cfg.HighWatermark,
		"low_watermark":  cfg.LowWatermark,
		"max_datagram":   cfg.MaxDatagram,
	})
	return pb, nil
}

// Start registers the runtime debug probes. Subsequent calls are
// no-ops.
func (pb *PipeBridge) Start() error {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if pb.started {
		return nil
	}
	pb.control.RegisterDebugProbe("pool.stats", func() any { return pb.pools.Stats() })
	log.Printf("[facade] pipebridge started: segment=%d capacity=%d watermarks=%d/%d",
		pb.config.SegmentSize, pb.config.PoolCapacity,
		pb.config.HighWatermark, pb.config.LowWatermark)
	pb.started = true
	return nil
}

// Stop closes every pool; outstanding pipe writers observe failed
// rentals afterwards. Calling Stop on a non-started facade is a no-op.
func (pb *PipeBridge) Stop() error {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if !pb.started {
		return nil
	}
	pb.pools.Close()
	log.Printf("[facade] pipebridge stopped")
	pb.started = false
	return nil
}

// Shutdown implements api.GracefulShutdown by delegating to Stop.
func (pb *PipeBridge) Shutdown() error {
	return pb.Stop()
}

// Control returns the Control surface for dynamic config and stats.
func (pb *PipeBridge) Control() api.Control {
	return pb.control
}

// Pools returns the shared segment pool manager.
func (pb *PipeBridge) Pools() *pool.Manager {
	return pb.pools
}

// NewPipe creates one flow-controlled pipe direction over the shared
// pools and configured watermarks.
func (pb *PipeBridge) NewPipe() *pipe.Pipe {
	return pipe.New(pb.segments(), pb.config.HighWatermark, pb.config.LowWatermark)
}

// NewDuplex creates a duplex pipe pair over the shared pools.
func (pb *PipeBridge) NewDuplex() *pipe.Duplex {
	return pipe.NewDuplex(pb.segments(), pb.config.HighWatermark, pb.config.LowWatermark)
}

// BindStream pumps conn through a fresh duplex pair and returns the
// running bridge together with the application's side of the pair.
func (pb *PipeBridge) BindStream(conn api.StreamConn) (*transport.StreamBridge, api.DuplexPipe) {
	d := pb.NewDuplex()
	sb := transport.NewStreamBridge(conn, d, transport.Options{
		RetryMin: time.Duration(pb.config.RetryMin),
		RetryMax: time.Duration(pb.config.RetryMax),
		Counters: pb.control.Counters(),
	})
	return sb, d.AppSide()
}

// InvertPipe adapts one side of a duplex pair into a net.Conn.
func (pb *PipeBridge) InvertPipe(p api.DuplexPipe) *invert.PipeStream {
	return invert.New(p)
}

// OpenMapped serves a file through the pipe reader contract.
func (pb *PipeBridge) OpenMapped(path string) (*mmap.Reader, error) {
	return mmap.Open(path)
}

// DialFrames opens a client-mode typed frame channel wired to the
// facade's pools and counters.
func DialFrames[T any](pb *PipeBridge, network, raddr string, codec api.Marshaller[T]) (*datagram.FrameChannel[T], error) {
	return datagram.Dial(network, raddr, codec, pb.frameOptions())
}

// ListenFrames opens a server-mode typed frame channel wired to the
// facade's pools and counters.
func ListenFrames[T any](pb *PipeBridge, network, laddr string, codec api.Marshaller[T]) (*datagram.FrameChannel[T], error) {
	return datagram.Listen(network, laddr, codec, pb.frameOptions())
}

func (pb *PipeBridge) segments() api.SegmentSource {
	return pb.pools.GetPool(pb.config.SegmentSize)
}

func (pb *PipeBridge) frameOptions() datagram.Options {
	return datagram.Options{
		Pools:          pb.pools,
		MaxDatagram:    pb.config.MaxDatagram,
		InboundFrames:  pb.config.InboundFrames,
		OutboundFrames: pb.config.OutboundFrames,
		Counters:       pb.control.Counters(),
	}
}

// File: facade/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package facade

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/momentics/pipebridge/api"
)

// Duration wraps time.Duration so YAML configs can spell delays as
// "250ms" or "2s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("duration must be a string or nanoseconds: %w", err)
	}
	*d = Duration(n)
	return nil
}

// Config holds parameters immutable per run. All fields influence the
// initialization of internal components; runtime observability goes
// through the Control interface instead.
type Config struct {
	SegmentSize    int      `yaml:"segment_size"`    // Byte size of one pooled segment
	PoolCapacity   int      `yaml:"pool_capacity"`   // Segments per pool size class
	HighWatermark  int      `yaml:"high_watermark"`  // Unconsumed bytes that pause a pipe writer
	LowWatermark   int      `yaml:"low_watermark"`   // Unconsumed bytes that resume a paused writer
	MaxDatagram    int      `yaml:"max_datagram"`    // Receive window per datagram
	InboundFrames  int      `yaml:"inbound_frames"`  // Decoded frames buffered per channel
	OutboundFrames int      `yaml:"outbound_frames"` // Frames queued for sending per channel
	RetryMin       Duration `yaml:"retry_min"`       // First delay after a transient write error
	RetryMax       Duration `yaml:"retry_max"`       // Cap on the transient-write retry delay
}

// DefaultConfig returns default configuration values. These sane
// defaults support typical use cases without extensive tuning.
func DefaultConfig() *Config {
	return &Config{
		SegmentSize:    64 * 1024,                  // 64 KiB segments
		PoolCapacity:   256,                        // 256 segments per size class
		HighWatermark:  256 * 1024,                 // Pause writers at 256 KiB backlog
		LowWatermark:   128 * 1024,                 // Resume writers at 128 KiB backlog
		MaxDatagram:    64 * 1024,                  // Whole-UDP-payload receive window
		InboundFrames:  256,                        // 256 decoded frames per channel
		OutboundFrames: 256,                        // 256 queued sends per channel
		RetryMin:       Duration(10 * time.Millisecond),
		RetryMax:       Duration(1 * time.Second),
	}
}

func (c *Config) validate() error {
	switch {
	case c.SegmentSize <= 0:
		return fmt.Errorf("segment_size %d: %w", c.SegmentSize, api.ErrInvalidArgument)
	case c.PoolCapacity <= 0:
		return fmt.Errorf("pool_capacity %d: %w", c.PoolCapacity, api.ErrInvalidArgument)
	case c.LowWatermark <= 0 || c.HighWatermark < c.LowWatermark:
		return fmt.Errorf("watermarks high=%d low=%d: %w",
			c.HighWatermark, c.LowWatermark, api.ErrInvalidArgument)
	case c.MaxDatagram <= 0:
		return fmt.Errorf("max_datagram %d: %w", c.MaxDatagram, api.ErrInvalidArgument)
	}
	return nil
}

// LoadConfig reads a YAML config from path, layered over the defaults.
// A missing file yields the defaults with no error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

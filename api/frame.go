// File: api/frame.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Typed datagram frames: a decoded payload plus peer endpoint and
// per-frame protocol flags, and the marshaller contract that converts
// payloads to and from their wire representation.

package api

import (
	"context"
	"net/netip"
)

// FrameFlags carries per-frame conditions reported by the datagram
// socket alongside the payload.
type FrameFlags uint32

const (
	// FlagTruncated marks a datagram that exceeded the receive buffer;
	// the payload is the surviving prefix.
	FlagTruncated FrameFlags = 1 << iota

	// FlagOutOfBand marks expedited (out-of-band) data.
	FlagOutOfBand
)

// Has reports whether all bits of f2 are set in f.
func (f FrameFlags) Has(f2 FrameFlags) bool { return f&f2 == f2 }

// Frame is one decoded datagram: an immutable payload value plus the
// peer it arrived from (or is destined to) and its protocol flags.
// Frames are transient; each is consumed by exactly one receive.
type Frame[T any] struct {
	Payload T
	Peer    netip.AddrPort
	Flags   FrameFlags
}

// Marshaller converts a typed payload to and from wire bytes.
//
// Implementations must be stateless, deterministic and side-effect
// free, and must not retain references to src or dst past the call.
// Decode errors are ordinary values; they never affect channel state.
type Marshaller[T any] interface {
	// ByteLength returns the encoded size of v when it can be computed
	// cheaply ahead of encoding; ok is false otherwise.
	ByteLength(v T) (n int, ok bool)

	// Encode writes the wire form of v into dst and returns the number
	// of bytes written. dst is at least ByteLength(v) when the hint
	// was given.
	Encode(v T, dst []byte) (int, error)

	// Decode parses one complete wire payload. The returned value must
	// not alias src.
	Decode(src []byte) (T, error)
}

// DuplexChannel pairs a frame source with a frame sink over one
// datagram socket. Closing either direction tears the socket down;
// in-flight sends complete or fail individually.
type DuplexChannel[T any] interface {
	// Send enqueues a frame for transmission. In server mode the frame
	// must carry its destination peer.
	Send(ctx context.Context, f Frame[T]) error

	// Recv blocks for the next decoded inbound frame.
	Recv(ctx context.Context) (Frame[T], error)

	// Close shuts the channel and the underlying socket down.
	// Idempotent and safe to call concurrently with Send/Recv.
	Close() error
}

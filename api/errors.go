// File: api/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Common error values shared across the pipebridge library. Callers
// match them with errors.Is; implementations attach context with %w.

package api

import "fmt"

// Common errors used across the library.
var (
	// ErrPoolClosed is returned by Rent after the owning pool shut down.
	ErrPoolClosed = fmt.Errorf("segment pool is closed")

	// ErrSegmentTooSmall is returned when a requested span exceeds the
	// pool's segment class size.
	ErrSegmentTooSmall = fmt.Errorf("requested span exceeds segment size")

	// ErrPipeCompleted is returned by writer operations after Complete.
	ErrPipeCompleted = fmt.Errorf("pipe is completed")

	// ErrReaderClosed is returned by Flush/Writable when the reading
	// side abandoned the pipe.
	ErrReaderClosed = fmt.Errorf("pipe reader is closed")

	// ErrChannelClosed is returned by Send/Recv on a closed frame
	// channel.
	ErrChannelClosed = fmt.Errorf("frame channel is closed")

	// ErrNoPeer is returned by a server-mode Send whose frame carries
	// no destination peer.
	ErrNoPeer = fmt.Errorf("frame has no destination peer")

	// ErrBridgeClosed is returned by bridge operations after Close or
	// Abort.
	ErrBridgeClosed = fmt.Errorf("stream bridge is closed")

	// ErrStreamClosed is returned by inverted stream operations after
	// Close.
	ErrStreamClosed = fmt.Errorf("stream is closed")

	// ErrInvalidArgument reports a recoverable caller contract
	// violation (bad sizes, watermarks, modes).
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// File: api/conn.go
// Author: momentics <momentics@gmail.com>
//
// Defines the stream socket abstraction consumed by the socket-pipe
// bridge. Deliberately a subset of net.Conn so any connected stream
// socket satisfies it without adaptation.

package api

// StreamConn abstracts a connected, full-duplex byte-stream socket.
type StreamConn interface {
	// Read reads into a preallocated buffer.
	Read(p []byte) (n int, err error)

	// Write writes buffer contents into the connection.
	Write(p []byte) (n int, err error)

	// Close shuts down both halves of the connection.
	Close() error
}

// WriteHalfCloser is implemented by stream connections that support
// shutting down only the writing half (e.g. *net.TCPConn). The bridge
// uses it for graceful two-phase shutdown; when absent, drain is
// followed by a full close.
type WriteHalfCloser interface {
	CloseWrite() error
}

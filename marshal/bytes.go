// File: marshal/bytes.go
// Package marshal provides api.Marshaller implementations for common
// payload types.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package marshal

import (
	"io"

	"github.com/momentics/pipebridge/api"
)

// Bytes is the identity marshaller for raw payloads.
type Bytes struct{}

var _ api.Marshaller[[]byte] = Bytes{}

func (Bytes) ByteLength(v []byte) (int, bool) { return len(v), true }

func (Bytes) Encode(v []byte, dst []byte) (int, error) {
	if len(dst) < len(v) {
		return 0, io.ErrShortBuffer
	}
	return copy(dst, v), nil
}

// Decode copies, so the frame payload outlives the receive buffer.
func (Bytes) Decode(src []byte) ([]byte, error) {
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}

// String marshals string payloads.
type String struct{}

var _ api.Marshaller[string] = String{}

func (String) ByteLength(v string) (int, bool) { return len(v), true }

func (String) Encode(v string, dst []byte) (int, error) {
	if len(dst) < len(v) {
		return 0, io.ErrShortBuffer
	}
	return copy(dst, v), nil
}

func (String) Decode(src []byte) (string, error) {
	return string(src), nil
}

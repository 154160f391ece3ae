// File: marshal/proto.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package marshal

import (
	"io"

	"google.golang.org/protobuf/proto"
)

// Proto marshals protobuf message payloads. M is the generated pointer
// type, e.g. Proto[*pb.Envelope].
type Proto[M proto.Message] struct{}

// ByteLength is exact for protobuf.
func (Proto[M]) ByteLength(v M) (int, bool) { return proto.Size(v), true }

func (Proto[M]) Encode(v M, dst []byte) (int, error) {
	if proto.Size(v) > len(dst) {
		return 0, io.ErrShortBuffer
	}
	out, err := proto.MarshalOptions{}.MarshalAppend(dst[:0], v)
	if err != nil {
		return 0, err
	}
	return len(out), nil
}

func (Proto[M]) Decode(src []byte) (M, error) {
	var zero M
	m := zero.ProtoReflect().New().Interface().(M)
	if err := proto.Unmarshal(src, m); err != nil {
		return zero, err
	}
	return m, nil
}

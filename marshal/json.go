// File: marshal/json.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package marshal

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/momentics/pipebridge/api"
	"github.com/momentics/pipebridge/pool"
)

// jsonBufs recycles encoder scratch buffers across frames.
var jsonBufs = pool.NewSyncPool(func() *bytes.Buffer { return new(bytes.Buffer) })

// JSON marshals any JSON-serializable payload type.
type JSON[T any] struct{}

var _ api.Marshaller[int] = JSON[int]{}

// ByteLength is unknown ahead of encoding for JSON.
func (JSON[T]) ByteLength(v T) (int, bool) { return 0, false }

func (JSON[T]) Encode(v T, dst []byte) (int, error) {
	buf := jsonBufs.Get()
	defer jsonBufs.Put(buf)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(v); err != nil {
		return 0, err
	}
	b := buf.Bytes()
	// Encoder terminates the value with a newline that is not part of
	// the wire form.
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if len(b) > len(dst) {
		return 0, io.ErrShortBuffer
	}
	return copy(dst, b), nil
}

func (JSON[T]) Decode(src []byte) (T, error) {
	var v T
	err := json.Unmarshal(src, &v)
	return v, err
}

//go:build !linux && !windows

// File: mmap/mmap_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Portable fallback: a plain read of the whole file. Same contract,
// no shared page cache.

package mmap

import (
	"io"
	"os"
)

func mapFile(f *os.File, size int) ([]byte, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, err
	}
	return data, nil
}

func unmapFile(data []byte) error { return nil }

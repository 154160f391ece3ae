//go:build linux

// File: mmap/mmap_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

func mapFile(f *os.File, size int) ([]byte, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	// Sequential pipe-style consumption; let readahead work for it.
	unix.Madvise(data, unix.MADV_SEQUENTIAL)
	return data, nil
}

func unmapFile(data []byte) error {
	return unix.Munmap(data)
}

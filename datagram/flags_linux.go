//go:build linux
// +build linux

// File: datagram/flags_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Maps Linux recvmsg flag bits onto frame flags.

package datagram

import (
	"golang.org/x/sys/unix"

	"github.com/momentics/pipebridge/api"
)

func sysFrameFlags(sflags int) api.FrameFlags {
	var f api.FrameFlags
	if sflags&unix.MSG_TRUNC != 0 {
		f |= api.FlagTruncated
	}
	if sflags&unix.MSG_OOB != 0 {
		f |= api.FlagOutOfBand
	}
	return f
}

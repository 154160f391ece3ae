//go:build !linux
// +build !linux

// File: datagram/flags_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Receive flag mapping is Linux-specific; other platforms report none.

package datagram

import "github.com/momentics/pipebridge/api"

func sysFrameFlags(int) api.FrameFlags { return 0 }

// Package pool
// Author: momentics <momentics@gmail.com>
//
// Memory layer for pipebridge. Implements bounded, reference-counted
// segment pooling with power-of-two size classes; the capacity bound is
// the library's primary backpressure mechanism.
// See pool.go, segment.go, manager.go for implementation details.
package pool

// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime configuration, counters, and debug introspection layer.
// Part of the pipebridge control plane.
//
// Provides concurrent-safe state handling primitives including:
//   - Snapshot config reads and merged updates with reload listeners
//   - Lock-free counters for the data-plane hot paths
//   - Debug hooks and probe registration
//
// This package is cross-platform and build-tag-partitioned as needed.
package control

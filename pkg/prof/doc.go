// Package prof profiles the link engine's step loop.
//
// The package is conditionally compiled using the "profile" build tag:
//
//	go build -tags profile ./cmd/cxphost
//
// Without the tag every function is a no-op and [Handler] returns nil, so
// the hooks in cxphost cost nothing in production builds.
//
// # CPU Profiling
//
//	prof.StartCPU("cpu.prof")
//	defer prof.StopCPU()
//
// # Snapshot Profiles
//
//	prof.Write(prof.ProfileHeap, "heap.prof")
//
// # HTTP Profiling
//
// With the tag, [Handler] serves the net/http/pprof endpoints under
// /debug/pprof/. The control API mounts it when it is non-nil.
package prof

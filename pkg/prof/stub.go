//go:build !profile

package prof

import "net/http"

// Profiling errors (never returned by the stubs).
var (
	ErrCPUProfileActive error
	ErrInvalidProfile   error
)

// Enabled reports whether the binary was built with profiling support.
func Enabled() bool { return false }

// StartCPU is a no-op when built without the "profile" tag.
func StartCPU(_ string) error { return nil }

// StopCPU is a no-op when built without the "profile" tag.
func StopCPU() error { return nil }

// IsCPUActive always returns false when built without the "profile" tag.
func IsCPUActive() bool { return false }

// Write is a no-op when built without the "profile" tag.
func Write(_ Profile, _ string) error { return nil }

// Handler returns nil when built without the "profile" tag.
func Handler() http.Handler { return nil }

package hal

import (
	"context"
	"strings"

	"github.com/ardnew/softcxp/link"
)

// Speed represents the CoaXPress downconnection bit rate.
type Speed uint8

// Bit rate constants (CXP-001-2021 Table 3).
const (
	SpeedUnknown Speed = iota // Not locked or unknown
	SpeedCXP1                 // 1.25 Gbit/s
	SpeedCXP2                 // 2.5 Gbit/s
	SpeedCXP3                 // 3.125 Gbit/s
	SpeedCXP5                 // 5 Gbit/s
	SpeedCXP6                 // 6.25 Gbit/s
	SpeedCXP10                // 10 Gbit/s
	SpeedCXP12                // 12.5 Gbit/s
)

// String returns a human-readable speed name.
func (s Speed) String() string {
	switch s {
	case SpeedCXP1:
		return "CXP-1"
	case SpeedCXP2:
		return "CXP-2"
	case SpeedCXP3:
		return "CXP-3"
	case SpeedCXP5:
		return "CXP-5"
	case SpeedCXP6:
		return "CXP-6"
	case SpeedCXP10:
		return "CXP-10"
	case SpeedCXP12:
		return "CXP-12"
	default:
		return "Unknown"
	}
}

// ParseSpeed returns the speed named s ("CXP-6", "cxp6", ...).
// Unknown names return SpeedUnknown.
func ParseSpeed(s string) Speed {
	s = strings.ReplaceAll(s, "-", "")
	for sp := SpeedCXP1; sp <= SpeedCXP12; sp++ {
		if strings.EqualFold(s, strings.ReplaceAll(sp.String(), "-", "")) {
			return sp
		}
	}
	return SpeedUnknown
}

// Status represents the state of the link.
type Status struct {
	Up       bool   // Receiver is locked and word aligned
	TxReady  bool   // Transmitter accepts characters
	Speed    Speed  // Downconnection bit rate
	RxQueued int    // Received words waiting for the host
	RxDrops  uint64 // Words dropped on a full receive queue
}

// LinkHAL defines the Hardware Abstraction Layer interface for the CoaXPress
// host link.
//
// The link engine runs one tick per character on the transmit side and one
// word per tick on the receive side. The HAL moves characters to the
// transceiver and hands back decoded, word-aligned receive words. Encoding,
// clock recovery and clock domain crossing belong to the HAL.
//
// Transmit and Receive are called from the engine's step loop only; the
// lifecycle and status methods may be called from any goroutine.
type LinkHAL interface {
	// Initialization and Lifecycle

	// Init prepares the transceiver.
	// The context can be used to cancel initialization.
	Init(ctx context.Context) error

	// Start enables the link.
	Start() error

	// Stop disables the link.
	Stop() error

	// Close releases all resources associated with the HAL.
	// After Close returns, the HAL should not be used.
	Close() error

	// Status

	// LinkReady reports whether the receiver is locked and aligned.
	LinkReady() bool

	// TxReady reports whether Transmit accepts a character this tick.
	TxReady() bool

	// Status returns a snapshot of the link state.
	Status() Status

	// Data Path

	// Transmit sends one character toward the device.
	Transmit(c link.Char) error

	// Receive returns the next received word, if one is available.
	Receive() (link.Word, bool)
}

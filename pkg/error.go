package pkg

import "errors"

// Link protocol errors.
var (
	// ErrDecode indicates malformed or unexpected framing on the receive side.
	ErrDecode = errors.New("packet decode error")

	// ErrCRC indicates a packet whose CRC register did not reach the check value.
	ErrCRC = errors.New("CRC error")

	// ErrBufferOverflow indicates the command buffer write cursor caught up
	// with unread data, or a packet did not fit in one slot.
	ErrBufferOverflow = errors.New("command buffer overflow")

	// ErrTestSequence indicates a received test packet that deviates from
	// the incrementing lane pattern.
	ErrTestSequence = errors.New("test sequence mismatch")

	// ErrProtocol indicates a generic protocol violation.
	ErrProtocol = errors.New("protocol error")

	// ErrBusy indicates the packet writer is already transmitting.
	ErrBusy = errors.New("writer busy")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNoPacket indicates there is no unread command packet.
	ErrNoPacket = errors.New("no packet available")

	// ErrLinkDown indicates the physical link is not ready.
	ErrLinkDown = errors.New("link down")

	// ErrAlreadyRunning indicates the host is already running.
	ErrAlreadyRunning = errors.New("already running")

	// ErrNotRunning indicates the host is not running.
	ErrNotRunning = errors.New("not running")

	// ErrCancelled indicates a cancelled operation.
	ErrCancelled = errors.New("operation cancelled")

	// ErrClosed indicates the HAL has been closed.
	ErrClosed = errors.New("link closed")
)

// ErrorKind classifies a link error as reported by the receive pipeline.
// None of the kinds halt the pipeline.
type ErrorKind int

// Error kinds.
const (
	ErrorKindNone           ErrorKind = iota // No error
	ErrorKindDecode                          // Framing error, resynchronized
	ErrorKindCRC                             // Per-packet CRC mismatch
	ErrorKindBufferOverflow                  // Sticky command buffer overflow
	ErrorKindTestSequence                    // Test packet pattern mismatch
)

// String returns a string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNone:
		return "none"
	case ErrorKindDecode:
		return "decode"
	case ErrorKindCRC:
		return "crc"
	case ErrorKindBufferOverflow:
		return "buffer_overflow"
	case ErrorKindTestSequence:
		return "test_sequence"
	default:
		return "unknown"
	}
}

// Error returns the sentinel error corresponding to the kind.
func (k ErrorKind) Error() error {
	switch k {
	case ErrorKindNone:
		return nil
	case ErrorKindDecode:
		return ErrDecode
	case ErrorKindCRC:
		return ErrCRC
	case ErrorKindBufferOverflow:
		return ErrBufferOverflow
	case ErrorKindTestSequence:
		return ErrTestSequence
	default:
		return ErrProtocol
	}
}

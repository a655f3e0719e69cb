package hal

import (
	"context"

	"github.com/ardnew/softcxp/link"
)

// DeviceHAL defines the Hardware Abstraction Layer interface for the device
// end of a CoaXPress link.
//
// It is the mirror of the host link HAL: the device receives the host's
// character stream and transmits words, each word carrying either four
// copies of one character (control and trigger traffic) or four payload
// bytes.
//
// Transmit and Receive must not block. All methods should be safe for
// concurrent use.
type DeviceHAL interface {
	// Init prepares the link. The context can be used to cancel
	// initialization.
	Init(ctx context.Context) error

	// Start brings the link up.
	Start() error

	// Stop takes the link down.
	Stop() error

	// Close releases the link resources.
	Close() error

	// LinkReady returns true if the link is up.
	LinkReady() bool

	// Receive returns the next host character, if one is available.
	Receive() (link.Char, bool)

	// Transmit queues one word for the host. It returns pkg.ErrBusy when
	// the transmit queue is full and pkg.ErrLinkDown when the link is down.
	Transmit(w link.Word) error
}

// Package fifo provides a FIFO-based HAL implementation for the CoaXPress
// host link.
//
// This package implements the [hal.LinkHAL] interface over byte streams,
// usually a pair of named pipes, so the host engine can talk to a device
// emulator running in a separate process. The device end is
// [github.com/ardnew/softcxp/device/hal/fifo]; cmd/cxpdevice runs one.
//
// # Architecture
//
// The host creates a link directory with two named pipes:
//
//	/tmp/cxp-link/          # Link directory
//	├── host_to_device      # Host characters, 2 bytes each
//	└── device_to_host      # Device words, 6 bytes each
//
// Any io.Reader and io.Writer pair can be used instead with NewStreamHAL.
//
// # Protocol
//
// Host to device, one frame per character:
//
//	[1 byte: flags][1 byte: data]
//
// Device to host, one frame per word:
//
//	[1 byte: flags][1 byte: K mask][4 bytes: data, lane 0 first]
//
// Flag bits:
//   - 0x01: control character (character frames only)
//   - 0x02: end of packet
//
// # Usage
//
//	hal := fifo.NewLinkHAL("/tmp/cxp-link")
//	h, err := host.New(hal, host.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx := context.Background()
//	if err := h.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Stop()
//
// # Queues
//
// A reader goroutine decodes device words into a bounded receive queue and
// a writer goroutine drains a bounded transmit queue in batches. Words that
// arrive while the receive queue is full are dropped and counted in
// [hal.Status].
package fifo

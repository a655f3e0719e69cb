// Package hal defines the Hardware Abstraction Layer interface for the
// CoaXPress host link.
//
// The HAL sits between the link engine and the transceiver. The engine
// implements all link-layer protocol logic (packet framing, trigger and
// acknowledgment insertion, duplicated-character voting, CRC) and leaves the
// HAL to move characters and words.
//
// # Design Principles
//
// The HAL is designed to be:
//   - Minimal: one character out and one word in per tick
//   - Generic: no transceiver-specific assumptions
//   - Non-blocking: Transmit and Receive never wait on the device
//
// # Interface Overview
//
// The [LinkHAL] interface covers:
//   - Initialization and lifecycle
//   - Link status (lock, transmit readiness, bit rate)
//   - The transmit character path and the receive word path
//
// # Implementing a HAL
//
// To implement a HAL for a new platform:
//  1. Create a type that implements all [LinkHAL] methods
//  2. Handle transceiver initialization in Init()
//  3. Encode each transmitted character with its control marker
//  4. Deliver received words aligned to lane 0 with their K mask
//
// Two HALs are available: [github.com/ardnew/softcxp/host/hal/loopback], an
// in-memory emulated device, and [github.com/ardnew/softcxp/host/hal/fifo],
// the link over named pipes or any byte stream.
package hal

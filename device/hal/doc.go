// Package hal defines the Hardware Abstraction Layer interface for an
// emulated CoaXPress device.
//
// The [DeviceHAL] interface is the device side of the link the host reaches
// through [github.com/ardnew/softcxp/host/hal.LinkHAL]: characters arrive
// from the host and words go back to it. The device emulator implements
// the protocol; the HAL only moves data.
//
// A FIFO-based HAL that pairs with the host FIFO HAL is available in
// [github.com/ardnew/softcxp/device/hal/fifo].
package hal

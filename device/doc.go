// Package device emulates the device end of a CoaXPress link.
//
// A [Device] consumes the host's character stream through a
// [hal.DeviceHAL] and answers it with words:
//
//   - Trigger sequences are removed from the character stream and, with
//     AckTriggers set, answered with a trigger acknowledgment.
//   - Test packets are echoed unchanged, so the host self-test sees its
//     own counter sequence.
//   - Control commands are checked against their CRC trailer and answered
//     with a control acknowledgment that echoes the command body.
//   - Heartbeats carrying HostID and the tick count are sent every
//     HeartbeatInterval ticks.
//
// Stream packets, events and device triggers are sent with [Device.SendStream],
// [Device.SendEvent] and [Device.SendTrigger].
//
// # Stepping
//
// Like the host, the device advances in ticks. Each tick takes up to four
// host characters and sends at most one word. Start runs batches of ticks
// on a ticker unless Config.TickInterval is zero, in which case the caller
// drives Tick.
//
// # Usage
//
//	port := fifo.New("/tmp/cxp-link")
//	dev, err := device.New(port, device.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	dev.SetOnCommand(func(words []uint32) {
//	    log.Printf("command %#x", words)
//	})
//	if err := dev.Start(ctx); err != nil {
//	    return err
//	}
//	defer dev.Stop()
package device

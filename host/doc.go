// Package host runs a CoaXPress host link engine against a link HAL.
//
// It is platform-agnostic and interacts with the PHY via the [hal.LinkHAL]
// interface defined in the github.com/ardnew/softcxp/host/hal package. The
// HAL moves characters to the device and words from it; everything above
// that (packet framing, idle and trigger insertion, duplicated character
// voting, CRC checking, command buffering) happens in the pipelines of the
// github.com/ardnew/softcxp/link package, which a [Host] owns.
//
// # Stepping
//
// Both pipelines advance in lock step. [Host.Tick] moves at most one
// character to the HAL and at most one word from it. A host started with a
// non-zero [Config.TickInterval] runs [Config.TicksPerBatch] ticks on every
// period of a ticker; with a zero interval the caller drives [Host.Tick]
// directly, which keeps tests deterministic.
//
// # Control
//
// Control strobes mirror the registers of a host controller:
//
//   - [Host.Trigger] sends a trigger sequence ahead of all other traffic
//   - [Host.TriggerAck] sends a trigger acknowledgment at the next word
//   - [Host.SendCommand] loads the writer buffer and starts transmission
//   - [Host.SendTestSequence] starts a self-test packet
//   - [Host.AckErrors] clears the sticky command buffer error
//
// Received command packets are read with [Host.ReadCommandPacket] or by
// moving the read cursor with [Host.SetReadPointer]. Neither takes the step
// lock.
//
// # Events
//
// Triggers, trigger acknowledgments, heartbeats, stream packets and receive
// errors are delivered through callbacks registered with the SetOn*
// methods. Callbacks run on the goroutine calling Tick, after the step lock
// is released.
//
// # Usage
//
//	h, err := host.New(loopback.New(), host.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	h.SetOnError(func(k pkg.ErrorKind) {
//	    log.Printf("link error: %s", k)
//	})
//	if err := h.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Stop()
//
//	if err := h.SendTestSequence(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Metrics
//
// Link counters are exported to the default prometheus registry under the
// softcxp_link namespace, labelled by [Config.Name].
package host

// Package loopback provides an in-memory HAL for the CoaXPress host link.
//
// The loopback device echoes every word the host transmits back to the host
// receiver, so a host can send itself test packets, trigger acknowledgments
// and command packets without hardware. Device traffic the host never sends
// (heartbeats, stream data, control acknowledgments) is added with Inject
// and InjectPacket.
//
// # Usage
//
//	lb := loopback.New()
//	h, err := host.New(lb, host.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := h.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Stop()
//
//	lb.InjectPacket(link.TypeHeartbeat, link.HeartbeatPayload(hb), true)
package loopback

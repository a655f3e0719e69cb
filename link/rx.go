package link

import (
	"fmt"

	"github.com/ardnew/softcxp/pkg"
)

// RXConfig sizes the receive pipeline.
type RXConfig struct {
	// Depth is the command slot capacity in words.
	Depth int
	// Slots is the number of command slots.
	Slots int
	// OnStreamPacket receives each complete stream packet. May be nil.
	OnStreamPacket func(words []Word)
}

// RX is the host receive pipeline:
//
//	PHY -> DCharDecoder -> TriggerReader -> TriggerAckReader -> PacketArbiter
//
// The arbiter routes stream packets to a Collector, test packets to the
// TestChecker, heartbeats to the HeartbeatReader, and command packets
// through the CRCChecker into the CommandReader.
type RX struct {
	decoder   *DCharDecoder
	trigger   *TriggerReader
	ack       *TriggerAckReader
	arbiter   *PacketArbiter
	stream    *Collector
	test      *TestChecker
	heartbeat *HeartbeatReader
	crc       *CRCChecker
	command   *CommandReader
}

// NewRX builds a receive pipeline.
func NewRX(cfg RXConfig) (*RX, error) {
	if cfg.Depth < 1 {
		return nil, fmt.Errorf("%w: command depth %d", pkg.ErrInvalidParameter, cfg.Depth)
	}
	if cfg.Slots < 2 {
		return nil, fmt.Errorf("%w: %d command slots, need at least 2",
			pkg.ErrInvalidParameter, cfg.Slots)
	}

	r := &RX{
		stream:    &Collector{OnPacket: cfg.OnStreamPacket},
		test:      NewTestChecker(),
		heartbeat: NewHeartbeatReader(),
		command:   NewCommandReader(cfg.Depth, cfg.Slots),
	}
	r.crc = NewCRCChecker(r.command)
	r.arbiter = NewPacketArbiter(r.stream, r.test, r.heartbeat, r.crc)
	r.ack = NewTriggerAckReader(r.arbiter)
	r.trigger = NewTriggerReader(r.ack)
	r.decoder = NewDCharDecoder(r.trigger)
	return r, nil
}

// Ready reports whether the pipeline accepts a word this tick.
func (r *RX) Ready() bool { return r.decoder.Ready() }

// Step feeds one word from the PHY.
func (r *RX) Step(w Word, stb bool) { r.decoder.Step(w, stb) }

// Commands returns the command packet ring.
func (r *RX) Commands() *CommandReader { return r.command }

// Heartbeat returns the latest heartbeat.
func (r *RX) Heartbeat() (Heartbeat, bool) { return r.heartbeat.Latest() }

// Pulses holds the one-tick event outputs of the receive pipeline.
type Pulses struct {
	Trigger        bool
	TriggerEvent   TriggerEvent
	TriggerAck     bool
	DecodeError    bool
	CRCError       bool
	BufferError    bool
	TestError      bool
	RecvTestPacket bool
	RecvHeartbeat  bool
	Heartbeat      bool
}

// Any reports whether any pulse is set.
func (p Pulses) Any() bool {
	return p.Trigger || p.TriggerAck || p.DecodeError || p.CRCError ||
		p.BufferError || p.TestError || p.RecvTestPacket || p.RecvHeartbeat ||
		p.Heartbeat
}

// Pulses returns the pulses raised during the last tick.
func (r *RX) Pulses() Pulses {
	ev, trig := r.trigger.Detected()
	return Pulses{
		Trigger:        trig,
		TriggerEvent:   ev,
		TriggerAck:     r.ack.Received(),
		DecodeError:    r.arbiter.DecodeError(),
		CRCError:       r.crc.Error(),
		BufferError:    r.command.BufferError(),
		TestError:      r.test.Error(),
		RecvTestPacket: r.arbiter.RecvTestPacket(),
		RecvHeartbeat:  r.arbiter.RecvHeartbeat(),
		Heartbeat:      r.heartbeat.Received(),
	}
}

// RXStats holds the receive counters.
type RXStats struct {
	Triggers         uint64 `json:"triggers"`
	TruncTriggers    uint64 `json:"truncated_triggers"`
	TriggerAcks      uint64 `json:"trigger_acks"`
	DecodeErrors     uint64 `json:"decode_errors"`
	CRCErrors        uint64 `json:"crc_errors"`
	BufferErrors     uint64 `json:"buffer_errors"`
	StreamPackets    uint64 `json:"stream_packets"`
	TestPackets      uint64 `json:"test_packets"`
	TestErrorPackets uint64 `json:"test_error_packets"`
	Heartbeats       uint64 `json:"heartbeats"`
	CommandPackets   uint64 `json:"command_packets"`
}

// Stats returns the receive counters.
func (r *RX) Stats() RXStats {
	return RXStats{
		Triggers:         r.trigger.Count(),
		TruncTriggers:    r.trigger.Truncated(),
		TriggerAcks:      r.ack.Count(),
		DecodeErrors:     r.arbiter.DecodeErrors(),
		CRCErrors:        r.crc.Errors(),
		BufferErrors:     r.command.Overflows(),
		StreamPackets:    r.stream.Packets(),
		TestPackets:      r.test.Packets(),
		TestErrorPackets: r.test.ErrorPackets(),
		Heartbeats:       r.heartbeat.Count(),
		CommandPackets:   r.command.Packets(),
	}
}

// ResetTestCounters clears the test checker counters.
func (r *RX) ResetTestCounters() { r.test.ResetCounters() }

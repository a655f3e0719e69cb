package link

import "github.com/ardnew/softcxp/pkg"

type wrapState uint8

const (
	wrapIdle wrapState = iota
	wrapHeader
	wrapCopy
	wrapFooter
)

// PacketWrapper frames each upstream packet with a start marker and an end
// marker. Only the end marker carries EOP downstream.
type PacketWrapper struct {
	up    WordSource
	state wrapState
}

// NewPacketWrapper returns a wrapper around up.
func NewPacketWrapper(up WordSource) *PacketWrapper {
	return &PacketWrapper{up: up}
}

// Out presents the marker or payload word of the current state.
func (p *PacketWrapper) Out() (Word, bool) {
	switch p.state {
	case wrapHeader:
		return ControlWord(PakStart), true
	case wrapCopy:
		w, stb := p.up.Out()
		w.EOP = false
		return w, stb
	case wrapFooter:
		w := ControlWord(PakEnd)
		w.EOP = true
		return w, true
	default:
		return Word{}, false
	}
}

// Step ends the tick.
func (p *PacketWrapper) Step(ack bool) {
	w, stb := p.up.Out()

	switch p.state {
	case wrapIdle:
		// Take nothing until the header is out.
		p.up.Step(!stb)
		if stb {
			p.state = wrapHeader
		}

	case wrapHeader:
		p.up.Step(false)
		if ack {
			p.state = wrapCopy
		}

	case wrapCopy:
		p.up.Step(ack)
		if transfer(stb, ack) && w.EOP {
			p.state = wrapFooter
		}

	case wrapFooter:
		p.up.Step(false)
		if ack {
			p.state = wrapIdle
		}
	}
}

type arbState uint8

const (
	arbIdle arbState = iota
	arbDecode
	arbCopy
)

// PacketArbiter finds packets in the received word stream and routes each
// payload to one of four ports by its type byte.
//
// Start and end markers never reach a port. The arbiter holds one word so
// the last payload word can be forwarded with EOP when the end marker
// arrives. Idle words inside a packet are dropped. For command packets the
// type word is forwarded as the first word so the consumer can tell the
// command packet types apart.
//
// A type byte that is not recognized, or a start marker inside a packet,
// raises a one-tick decode error pulse. The arbiter then waits for the
// next start marker; a packet cut short by a new start marker is closed
// with EOP and must be discarded by the consumer.
type PacketArbiter struct {
	ports [KindCommand + 1]WordSink

	state arbState
	kind  PacketKind

	hold Word
	held bool

	decodeErr     bool
	recvTest      bool
	recvHeartbeat bool

	decodeErrors uint64
	packets      [KindCommand + 1]uint64
}

// NewPacketArbiter returns an arbiter with the four output ports. A nil
// port discards its packets.
func NewPacketArbiter(stream, test, heartbeat, command WordSink) *PacketArbiter {
	a := &PacketArbiter{}
	for k, s := range map[PacketKind]WordSink{
		KindStream:    stream,
		KindTest:      test,
		KindHeartbeat: heartbeat,
		KindCommand:   command,
	} {
		if s == nil {
			s = Discard
		}
		a.ports[k] = s
	}
	a.ports[KindNone] = Discard
	return a
}

// Ready reports whether the arbiter accepts a word this tick.
func (a *PacketArbiter) Ready() bool {
	if a.state == arbCopy && a.held {
		return a.ports[a.kind].Ready()
	}
	return true
}

// Step feeds one word.
func (a *PacketArbiter) Step(w Word, stb bool) {
	a.decodeErr = false
	a.recvTest = false
	a.recvHeartbeat = false

	target := a.kind
	var out Word
	var outStb bool

	if transfer(stb, a.Ready()) {
		switch a.state {
		case arbIdle:
			if w.Is(PakStart) {
				a.state = arbDecode
			}
		case arbDecode:
			a.decode(w)
		case arbCopy:
			out, outStb = a.copy(w)
		}
	}

	for k := KindStream; k <= KindCommand; k++ {
		if outStb && k == target {
			a.ports[k].Step(out, true)
		} else {
			a.ports[k].Step(Word{}, false)
		}
	}
}

func (a *PacketArbiter) decode(w Word) {
	if w.IsIdle() {
		return
	}
	kind := KindNone
	if !w.DCharK {
		kind = ClassifyType(w.DChar)
	}
	if kind == KindNone {
		a.fail("unknown packet type", w)
		if w.Is(PakStart) {
			return
		}
		a.state = arbIdle
		return
	}

	a.kind = kind
	a.packets[kind]++
	a.state = arbCopy
	switch kind {
	case KindTest:
		a.recvTest = true
	case KindHeartbeat:
		a.recvHeartbeat = true
	case KindCommand:
		a.hold = w
		a.hold.EOP = false
		a.held = true
	}
}

func (a *PacketArbiter) copy(w Word) (out Word, outStb bool) {
	if w.IsIdle() {
		return Word{}, false
	}

	if w.Is(PakEnd) || w.Is(PakStart) {
		if a.held {
			out, outStb = a.hold, true
			out.EOP = true
			a.held = false
		}
		if w.Is(PakStart) {
			a.fail("start marker inside packet", w)
			a.state = arbDecode
		} else {
			a.state = arbIdle
		}
		return out, outStb
	}

	if a.held {
		out, outStb = a.hold, true
	}
	a.hold = w
	a.hold.EOP = false
	a.held = true
	return out, outStb
}

func (a *PacketArbiter) fail(reason string, w Word) {
	a.decodeErr = true
	a.decodeErrors++
	pkg.LogDebug(pkg.ComponentRX, "packet decode error",
		"reason", reason,
		"word", w.String())
}

// DecodeError reports the decode error pulse of the last tick.
func (a *PacketArbiter) DecodeError() bool { return a.decodeErr }

// RecvTestPacket reports that a test packet header was decoded last tick.
func (a *PacketArbiter) RecvTestPacket() bool { return a.recvTest }

// RecvHeartbeat reports that a heartbeat header was decoded last tick.
func (a *PacketArbiter) RecvHeartbeat() bool { return a.recvHeartbeat }

// DecodeErrors returns the number of decode errors.
func (a *PacketArbiter) DecodeErrors() uint64 { return a.decodeErrors }

// Packets returns the number of packets routed to kind.
func (a *PacketArbiter) Packets(kind PacketKind) uint64 {
	if kind > KindCommand {
		return 0
	}
	return a.packets[kind]
}

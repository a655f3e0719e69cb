package link

import "github.com/ardnew/softcxp/pkg"

// AckPayload is the data byte that follows the acknowledge marker.
const AckPayload = 0x01

type ackState uint8

const (
	ackCopy ackState = iota
	ackWriteMarker
	ackWritePayload
)

// TriggerAckInserter suspends the word stream for two words to send a
// trigger acknowledgment (CXP-001-2021 section 9.3.2): io_ack four times,
// then 0x01 four times. Insertion happens at a word boundary.
type TriggerAckInserter struct {
	up WordSource

	state   ackState
	pending bool
	sent    uint64
}

// NewTriggerAckInserter returns an inserter wrapping up.
func NewTriggerAckInserter(up WordSource) *TriggerAckInserter {
	return &TriggerAckInserter{up: up}
}

// Strobe requests an acknowledgment. Strobes while one is pending merge.
func (a *TriggerAckInserter) Strobe() {
	a.pending = true
}

// Out presents the acknowledgment words or the upstream word.
func (a *TriggerAckInserter) Out() (Word, bool) {
	switch a.state {
	case ackWriteMarker:
		return ControlWord(IOAck), true
	case ackWritePayload:
		return DataWord(AckPayload), true
	default:
		return a.up.Out()
	}
}

// Step ends the tick.
func (a *TriggerAckInserter) Step(ack bool) {
	switch a.state {
	case ackCopy:
		_, stb := a.up.Out()
		a.up.Step(ack)
		// Switch only on a word boundary: nothing presented, or the
		// presented word went out in full.
		if a.pending && (!stb || ack) {
			a.pending = false
			a.state = ackWriteMarker
		}

	case ackWriteMarker:
		a.up.Step(false)
		if ack {
			a.state = ackWritePayload
		}

	case ackWritePayload:
		a.up.Step(false)
		if ack {
			a.sent++
			a.state = ackCopy
		}
	}
}

// Busy reports whether an acknowledgment is pending or being sent.
func (a *TriggerAckInserter) Busy() bool {
	return a.pending || a.state != ackCopy
}

// Sent returns the number of acknowledgments emitted.
func (a *TriggerAckInserter) Sent() uint64 { return a.sent }

type ackReadState uint8

const (
	ackReadCopy ackReadState = iota
	ackReadPayload
)

// TriggerAckReader removes trigger acknowledgments from the received word
// stream and pulses when one is complete. A control word after io_ack ends
// the acknowledgment without a pulse and is forwarded.
type TriggerAckReader struct {
	next WordSink

	state    ackReadState
	received bool
	count    uint64
}

// NewTriggerAckReader returns a reader feeding next.
func NewTriggerAckReader(next WordSink) *TriggerAckReader {
	return &TriggerAckReader{next: next}
}

// Ready reports whether the reader accepts a word this tick.
func (r *TriggerAckReader) Ready() bool {
	return r.next.Ready()
}

// Step feeds one word.
func (r *TriggerAckReader) Step(w Word, stb bool) {
	r.received = false

	switch r.state {
	case ackReadCopy:
		if transfer(stb, r.Ready()) && w.Is(IOAck) {
			r.next.Step(Word{}, false)
			r.state = ackReadPayload
			return
		}
		r.next.Step(w, stb)

	case ackReadPayload:
		if !transfer(stb, r.Ready()) {
			r.next.Step(Word{}, false)
			return
		}
		r.state = ackReadCopy
		if w.DCharK {
			pkg.LogDebug(pkg.ComponentRX, "trigger ack truncated by control word", "word", w)
			r.next.Step(w, true)
			return
		}
		r.next.Step(Word{}, false)
		if w.DChar == AckPayload {
			r.received = true
			r.count++
		}
	}
}

// Received reports the acknowledgment pulse of the last tick.
func (r *TriggerAckReader) Received() bool { return r.received }

// Count returns the number of acknowledgments received.
func (r *TriggerAckReader) Count() uint64 { return r.count }

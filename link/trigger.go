package link

import "github.com/ardnew/softcxp/pkg"

// TriggerLength is the number of characters in a trigger sequence.
const TriggerLength = 6

type trigState uint8

const (
	trigCopy trigState = iota
	trigWrite
)

// TriggerEvent is an out-of-band trigger: a delay and a link trigger number.
type TriggerEvent struct {
	Delay       uint8 `json:"delay"`
	LinkTrigger uint8 `json:"link_trigger"`
}

// TriggerSequence returns the six characters sent for a trigger
// (CXP-001-2021 Tables 15 and 16): three indicator characters followed by
// the delay three times.
func TriggerSequence(delay uint8, linkTriggerMode bool) [TriggerLength]Char {
	first, rest := TrigIndic28_2, TrigIndic28_4
	if linkTriggerMode {
		first, rest = TrigIndic28_4, TrigIndic28_2
	}
	return [TriggerLength]Char{
		{Data: uint8(first), K: true},
		{Data: uint8(rest), K: true},
		{Data: uint8(rest), K: true},
		{Data: delay},
		{Data: delay},
		{Data: delay},
	}
}

// TriggerInserter preempts the character stream with a trigger sequence.
// It is the last stage before the PHY, so a trigger waits for at most the
// one character already presented in the tick of the strobe.
type TriggerInserter struct {
	up CharSource

	// LinkTriggerMode selects the [K28.4, K28.2, K28.2] indicator order.
	LinkTriggerMode bool

	state   trigState
	cnt     int
	seq     [TriggerLength]Char
	pending bool
	sent    uint64
}

// NewTriggerInserter returns an inserter wrapping up.
func NewTriggerInserter(up CharSource) *TriggerInserter {
	return &TriggerInserter{up: up}
}

// Strobe requests a trigger with the given delay. The delay and the
// indicator order are latched here. A strobe while a trigger is pending or
// being sent is dropped and false is returned.
func (t *TriggerInserter) Strobe(delay uint8) bool {
	if t.pending || t.state == trigWrite {
		pkg.LogWarn(pkg.ComponentTX, "trigger dropped, insertion in progress",
			"delay", delay)
		return false
	}
	t.seq = TriggerSequence(delay, t.LinkTriggerMode)
	t.pending = true
	return true
}

// Out presents the next trigger character or the upstream character.
func (t *TriggerInserter) Out() (Char, bool) {
	if t.state == trigWrite {
		return t.seq[t.cnt], true
	}
	return t.up.Out()
}

// Step ends the tick.
func (t *TriggerInserter) Step(ack bool) {
	switch t.state {
	case trigCopy:
		t.up.Step(ack)
		t.cnt = 0
		if t.pending {
			t.pending = false
			t.state = trigWrite
		}

	case trigWrite:
		t.up.Step(false)
		if !ack {
			return
		}
		if t.cnt == TriggerLength-1 {
			t.sent++
			t.state = trigCopy
		} else {
			t.cnt++
		}
	}
}

// Busy reports whether a trigger is pending or being sent.
func (t *TriggerInserter) Busy() bool {
	return t.pending || t.state == trigWrite
}

// Sent returns the number of complete trigger sequences emitted.
func (t *TriggerInserter) Sent() uint64 { return t.sent }

type trigReadState uint8

const (
	trigReadCopy trigReadState = iota
	trigReadDelay
	trigReadLinkTrigger
)

// TriggerReader extracts trigger events from the received word stream. On
// the receive side each trigger character arrives as one duplicated word:
// an indicator, the delay, then the link trigger number. All three words
// are removed from the stream. A control word in place of a field truncates
// the trigger; it is forwarded and no event fires.
type TriggerReader struct {
	next WordSink

	state     trigReadState
	delay     uint8
	event     TriggerEvent
	detected  bool
	count     uint64
	truncated uint64
}

// NewTriggerReader returns a reader feeding next.
func NewTriggerReader(next WordSink) *TriggerReader {
	return &TriggerReader{next: next}
}

// Ready reports whether the reader accepts a word this tick.
func (r *TriggerReader) Ready() bool {
	return r.next.Ready()
}

// Step feeds one word.
func (r *TriggerReader) Step(w Word, stb bool) {
	r.detected = false

	if r.state == trigReadCopy {
		if transfer(stb, r.Ready()) && (w.Is(TrigIndic28_2) || w.Is(TrigIndic28_4)) {
			r.next.Step(Word{}, false)
			r.state = trigReadDelay
			return
		}
		r.next.Step(w, stb)
		return
	}

	if !transfer(stb, r.Ready()) {
		r.next.Step(Word{}, false)
		return
	}
	if w.DCharK {
		pkg.LogDebug(pkg.ComponentRX, "trigger truncated by control word", "word", w)
		r.truncated++
		r.state = trigReadCopy
		r.next.Step(w, true)
		return
	}
	r.next.Step(Word{}, false)

	switch r.state {
	case trigReadDelay:
		r.delay = w.DChar
		r.state = trigReadLinkTrigger

	case trigReadLinkTrigger:
		r.event = TriggerEvent{Delay: r.delay, LinkTrigger: w.DChar}
		r.detected = true
		r.count++
		r.state = trigReadCopy
	}
}

// Detected reports the trigger pulse of the last tick and its fields.
func (r *TriggerReader) Detected() (TriggerEvent, bool) {
	return r.event, r.detected
}

// Count returns the number of triggers received.
func (r *TriggerReader) Count() uint64 { return r.count }

// Truncated returns the number of triggers cut short by a control word.
func (r *TriggerReader) Truncated() uint64 { return r.truncated }

package link

// Every stage advances exactly one step per tick. A value moves between two
// stages only in a tick where the producer presents it (valid) and the
// consumer accepts it (ready).
//
// Within a tick, Out and Ready must be pure: they may be called any number
// of times and must return the same result until Step ends the tick.

// WordSource is the producing side of a transmit word stream.
type WordSource interface {
	// Out returns the word presented this tick and whether it is valid.
	Out() (Word, bool)

	// Step ends the tick. ack reports whether the consumer was ready; the
	// presented word was transferred if it was valid and ack is true.
	Step(ack bool)
}

// CharSource is the producing side of a transmit character stream.
type CharSource interface {
	Out() (Char, bool)
	Step(ack bool)
}

// WordSink is the consuming side of a receive word stream.
type WordSink interface {
	// Ready reports whether the sink accepts a word this tick.
	Ready() bool

	// Step ends the tick. stb reports whether w is valid; w was
	// transferred if stb is true and Ready returned true.
	Step(w Word, stb bool)
}

// Discard is a WordSink that accepts and drops every word.
var Discard WordSink = discard{}

type discard struct{}

func (discard) Ready() bool         { return true }
func (discard) Step(_ Word, _ bool) {}

// Collector is a WordSink that gathers words into packets and hands each
// completed packet to OnPacket. It is the default consumer for the stream
// port of the arbiter.
type Collector struct {
	// OnPacket receives each completed packet. The slice is owned by the
	// callee.
	OnPacket func(words []Word)

	words   []Word
	packets uint64
}

// Ready always returns true.
func (c *Collector) Ready() bool { return true }

// Step appends w to the current packet and completes it at EOP.
func (c *Collector) Step(w Word, stb bool) {
	if !stb {
		return
	}
	c.words = append(c.words, w)
	if !w.EOP {
		return
	}
	c.packets++
	words := c.words
	c.words = nil
	if c.OnPacket != nil {
		c.OnPacket(words)
	}
}

// Packets returns the number of completed packets.
func (c *Collector) Packets() uint64 { return c.packets }

// Pending returns the number of words of the packet in progress.
func (c *Collector) Pending() int { return len(c.words) }

// transfer reports whether a value moved this tick.
func transfer(valid, ready bool) bool { return valid && ready }

package link

import "github.com/ardnew/softcxp/pkg"

// TestChecker compares received test packets against a local copy of the
// generator used by Writer (CXP-001-2021 section 9.9.1). Each lane keeps
// its own counter starting at the lane index and wrapping after 0xFC+lane.
type TestChecker struct {
	cnt [Lanes]uint8

	err        bool
	packetErr  bool
	packets    uint64
	errPackets uint64
	wordErrors uint64
}

// NewTestChecker returns a checker with reset counters.
func NewTestChecker() *TestChecker {
	c := &TestChecker{}
	c.reset()
	return c
}

func (c *TestChecker) reset() {
	for i := range c.cnt {
		c.cnt[i] = uint8(i)
	}
}

// Ready always returns true.
func (c *TestChecker) Ready() bool { return true }

// Step checks one word.
func (c *TestChecker) Step(w Word, stb bool) {
	c.err = false
	if !stb {
		return
	}

	for i := range c.cnt {
		if w.Lane(i).Data != c.cnt[i] {
			c.err = true
		}
		if c.cnt[i] == uint8(0xFC+i) {
			c.cnt[i] = uint8(i)
		} else {
			c.cnt[i] += Lanes
		}
	}
	if c.err {
		c.wordErrors++
		c.packetErr = true
	}

	if !w.EOP {
		return
	}
	c.packets++
	if c.packetErr {
		c.errPackets++
		pkg.LogDebug(pkg.ComponentRX, "test packet mismatch",
			"packets", c.packets,
			"errors", c.errPackets)
	}
	c.packetErr = false
	c.reset()
}

// Error reports the mismatch pulse of the last tick.
func (c *TestChecker) Error() bool { return c.err }

// Packets returns the number of test packets checked.
func (c *TestChecker) Packets() uint64 { return c.packets }

// ErrorPackets returns the number of test packets with at least one
// mismatch.
func (c *TestChecker) ErrorPackets() uint64 { return c.errPackets }

// WordErrors returns the number of mismatched words.
func (c *TestChecker) WordErrors() uint64 { return c.wordErrors }

// ResetCounters clears the packet and error counters.
func (c *TestChecker) ResetCounters() {
	c.packets = 0
	c.errPackets = 0
	c.wordErrors = 0
}

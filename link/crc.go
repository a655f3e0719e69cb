package link

import (
	"encoding/binary"
	"hash/crc32"
	"math/bits"

	"github.com/ardnew/softcxp/pkg"
)

// CRC-32 parameters (CXP-001-2021 section 9.2.2.2).
const (
	CRCPolynomial = 0x04C11DB7
	CRCSeed       = 0xFFFFFFFF
	CRCCheck      = 0x00000000
)

// crcTable is the reflected form of CRCPolynomial. Word bits are fed LSB
// first, which makes the MSB-first shift register equivalent to the
// reflected table engine.
var crcTable = crc32.MakeTable(crc32.IEEE)

// CRC is the streaming CRC-32 engine. The zero value is not seeded; use
// NewCRC or call Reset.
type CRC struct {
	// raw is the shift register in reflected bit order.
	raw uint32
	buf [4]byte
}

// NewCRC returns a seeded engine.
func NewCRC() *CRC {
	c := &CRC{}
	c.Reset()
	return c
}

// Reset reloads the seed.
func (c *CRC) Reset() {
	c.raw = CRCSeed
}

// Update feeds one word.
func (c *CRC) Update(data uint32) {
	binary.LittleEndian.PutUint32(c.buf[:], data)
	// crc32.Update complements on entry and exit; undo both so no final
	// XOR is applied.
	c.raw = ^crc32.Update(^c.raw, crcTable, c.buf[:])
}

// Register returns the shift register in MSB-first order.
func (c *CRC) Register() uint32 {
	return bits.Reverse32(c.raw)
}

// Value returns the bit-reversed register, the word appended as a packet
// trailer.
func (c *CRC) Value() uint32 {
	return c.raw
}

// Valid reports whether the register equals the check value. After a
// packet and its trailer have been fed this is true for an intact packet.
func (c *CRC) Valid() bool {
	return c.Register() == CRCCheck
}

// Checksum returns the trailer for a complete payload.
func Checksum(payload []uint32) uint32 {
	c := NewCRC()
	for _, w := range payload {
		c.Update(w)
	}
	return c.Value()
}

// CRCChecker validates the trailing CRC word of each packet on the receive
// side. Every word, including the trailer, is fed into the register. The
// trailer itself is withheld: the checker holds one word so that the last
// payload word can be forwarded with EOP set once the trailer is seen.
//
// A mismatch raises a one-tick error pulse. Payload already forwarded cannot
// be retracted; consumers discard the packet based on the pulse.
type CRCChecker struct {
	next WordSink
	crc  CRC

	hold Word
	held bool

	err    bool
	errors uint64
}

// NewCRCChecker returns a checker feeding next.
func NewCRCChecker(next WordSink) *CRCChecker {
	c := &CRCChecker{next: next}
	c.crc.Reset()
	return c
}

// Ready reports whether the checker accepts a word this tick.
func (c *CRCChecker) Ready() bool {
	return !c.held || c.next.Ready()
}

// Step feeds one word.
func (c *CRCChecker) Step(w Word, stb bool) {
	c.err = false
	if !transfer(stb, c.Ready()) {
		c.next.Step(Word{}, false)
		return
	}

	c.crc.Update(w.Data)

	if w.EOP {
		if c.held {
			out := c.hold
			out.EOP = true
			c.held = false
			c.next.Step(out, true)
		} else {
			c.next.Step(Word{}, false)
		}
		if !c.crc.Valid() {
			c.err = true
			c.errors++
			pkg.LogDebug(pkg.ComponentRX, "crc mismatch",
				"register", c.crc.Register(),
				"trailer", w.Data)
		}
		c.crc.Reset()
		return
	}

	if c.held {
		c.next.Step(c.hold, true)
	} else {
		c.next.Step(Word{}, false)
	}
	c.hold = w
	c.held = true
}

// Error reports the error pulse of the last tick.
func (c *CRCChecker) Error() bool { return c.err }

// Errors returns the number of packets that failed the check.
func (c *CRCChecker) Errors() uint64 { return c.errors }

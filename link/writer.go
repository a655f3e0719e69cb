package link

import (
	"fmt"

	"github.com/ardnew/softcxp/pkg"
)

// Test packet layout (CXP-001-2021 section 9.9.1).
const (
	// TestCounterEnd is the counter value of the last test word.
	TestCounterEnd = 0xFFC
	// TestPacketWords is the number of counter words in a test packet.
	TestPacketWords = TestCounterEnd/Lanes + 1
)

// TestWord returns the test packet word for counter value n: lanes
// n, n+1, n+2, n+3, each truncated to a byte.
func TestWord(n int) Word {
	var data uint32
	for i := 0; i < Lanes; i++ {
		data |= uint32(uint8(n+i)) << (CharWidth * i)
	}
	return Word{Data: data}
}

type writerState uint8

const (
	writerIdle writerState = iota
	writerTransmit
	writerTrailer
	writerTestType
	writerTestCounter
)

// Writer is the buffer-backed packet generator at the head of the transmit
// pipeline. Start transmits the loaded buffer; StartTestSequence generates
// a self-test packet. Only one sequence runs at a time.
type Writer struct {
	buf []uint32

	// WordLen is the number of buffer words sent by Start.
	WordLen int
	// AppendCRC appends the CRC of the buffer words as the last word.
	AppendCRC bool

	state writerState
	addr  int
	cnt   int
	crc   CRC

	startPending bool
	testPending  bool

	packets     uint64
	testPackets uint64
}

// NewWriter returns a writer with a buffer of depth words.
func NewWriter(depth int) *Writer {
	return &Writer{buf: make([]uint32, depth)}
}

// Depth returns the buffer capacity in words.
func (wr *Writer) Depth() int { return len(wr.buf) }

// Load copies words into the buffer and sets WordLen.
func (wr *Writer) Load(words []uint32) error {
	if wr.Busy() {
		return pkg.ErrBusy
	}
	if len(words) == 0 || len(words) > len(wr.buf) {
		return fmt.Errorf("%w: %d words for a %d word buffer",
			pkg.ErrInvalidParameter, len(words), len(wr.buf))
	}
	copy(wr.buf, words)
	wr.WordLen = len(words)
	return nil
}

// Start requests transmission of the buffer.
func (wr *Writer) Start() error {
	if wr.Busy() {
		return pkg.ErrBusy
	}
	if wr.WordLen < 1 || wr.WordLen > len(wr.buf) {
		return fmt.Errorf("%w: word length %d", pkg.ErrInvalidParameter, wr.WordLen)
	}
	wr.startPending = true
	return nil
}

// StartTestSequence requests a self-test packet.
func (wr *Writer) StartTestSequence() error {
	if wr.Busy() {
		return pkg.ErrBusy
	}
	wr.testPending = true
	return nil
}

// Busy reports whether a sequence is requested or running.
func (wr *Writer) Busy() bool {
	return wr.state != writerIdle || wr.startPending || wr.testPending
}

// Out presents the next generated word.
func (wr *Writer) Out() (Word, bool) {
	switch wr.state {
	case writerTransmit:
		last := wr.addr == wr.WordLen-1
		return Word{Data: wr.buf[wr.addr], EOP: last && !wr.AppendCRC}, true
	case writerTrailer:
		return Word{Data: wr.crc.Value(), EOP: true}, true
	case writerTestType:
		return DataWord(TypeTestPacket), true
	case writerTestCounter:
		w := TestWord(wr.cnt)
		w.EOP = wr.cnt == TestCounterEnd
		return w, true
	default:
		return Word{}, false
	}
}

// Step ends the tick.
func (wr *Writer) Step(ack bool) {
	switch wr.state {
	case writerIdle:
		switch {
		case wr.startPending:
			wr.startPending = false
			wr.addr = 0
			wr.crc.Reset()
			wr.state = writerTransmit
			pkg.LogDebug(pkg.ComponentTX, "writer transmit", "words", wr.WordLen)
		case wr.testPending:
			wr.testPending = false
			wr.cnt = 0
			wr.state = writerTestType
			pkg.LogDebug(pkg.ComponentTX, "writer test sequence")
		}

	case writerTransmit:
		if !ack {
			return
		}
		wr.crc.Update(wr.buf[wr.addr])
		if wr.addr < wr.WordLen-1 {
			wr.addr++
			return
		}
		if wr.AppendCRC {
			wr.state = writerTrailer
			return
		}
		wr.packets++
		wr.state = writerIdle

	case writerTrailer:
		if ack {
			wr.packets++
			wr.state = writerIdle
		}

	case writerTestType:
		if ack {
			wr.state = writerTestCounter
		}

	case writerTestCounter:
		if !ack {
			return
		}
		if wr.cnt == TestCounterEnd {
			wr.testPackets++
			wr.state = writerIdle
			return
		}
		wr.cnt += Lanes
	}
}

// Packets returns the number of buffer transmissions completed.
func (wr *Writer) Packets() uint64 { return wr.packets }

// TestPackets returns the number of test packets completed.
func (wr *Writer) TestPackets() uint64 { return wr.testPackets }

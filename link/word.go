package link

import "fmt"

// Widths of the two stream granularities.
const (
	CharWidth = 8
	WordWidth = 32
	Lanes     = WordWidth / CharWidth
)

// KCode is a control character value. K(x, y) = (y<<5) | x.
type KCode uint8

// K encodes the control character Kx.y.
func K(x, y uint8) KCode {
	return KCode(y<<5 | x)
}

// Reserved control characters.
const (
	PakStart      KCode = 7<<5 | 27 // K27.7, 0xFB
	PakEnd        KCode = 7<<5 | 29 // K29.7, 0xFD
	IOAck         KCode = 6<<5 | 28 // K28.6, 0xDC
	IdleComma     KCode = 5<<5 | 28 // K28.5, 0xBC
	IdleAlignment KCode = 1<<5 | 28 // K28.1, 0x3C
	TrigIndic28_2 KCode = 2<<5 | 28 // K28.2, 0x5C
	TrigIndic28_4 KCode = 4<<5 | 28 // K28.4, 0x9C
	StreamMarker  KCode = 3<<5 | 28 // K28.3, 0x7C
)

// String returns the Kx.y name of the code.
func (k KCode) String() string {
	return fmt.Sprintf("K%d.%d", uint8(k)&0x1F, uint8(k)>>5)
}

// Char is one byte lane of the stream with its control marker.
type Char struct {
	Data uint8
	K    bool
	EOP  bool
}

// Word is the unit of flow between pipeline stages: four byte lanes, lane 0
// in bits 0-7 and first on the wire.
//
// DChar and DCharK carry the majority-voted duplicated character. They are
// filled in by the DCharDecoder on the receive side and are zero on the
// transmit side.
type Word struct {
	Data   uint32
	K      uint8 // bit i set when lane i is a control character
	EOP    bool
	DChar  uint8
	DCharK bool
}

// Lane returns lane i of the word.
func (w Word) Lane(i int) Char {
	return Char{
		Data: uint8(w.Data >> (CharWidth * i)),
		K:    w.K&(1<<i) != 0,
	}
}

// Quad returns the four lanes of the word.
func (w Word) Quad() [Lanes]Char {
	var q [Lanes]Char
	for i := range q {
		q[i] = w.Lane(i)
	}
	return q
}

// Is reports whether the voted character of the word is the control
// character k.
func (w Word) Is(k KCode) bool {
	return w.DCharK && w.DChar == uint8(k)
}

// IsIdle reports whether the raw lanes form the idle pattern.
func (w Word) IsIdle() bool {
	return w.Data == IdleWord.Data && w.K == IdleWord.K
}

// String formats the word for logs.
func (w Word) String() string {
	s := fmt.Sprintf("%08X/k%X", w.Data, w.K)
	if w.EOP {
		s += "/eop"
	}
	return s
}

// Replicate returns b copied into all four lanes.
func Replicate(b uint8) uint32 {
	return uint32(b) * 0x01010101
}

// ControlWord returns a word carrying k in all four lanes.
func ControlWord(k KCode) Word {
	return Word{Data: Replicate(uint8(k)), K: 0xF}
}

// DataWord returns a word carrying data character b in all four lanes.
func DataWord(b uint8) Word {
	return Word{Data: Replicate(b)}
}

// IdleWord is the idle pattern K28.5, K28.1, K28.1, D21.5 (section 9.2.5).
var IdleWord = Word{
	Data: uint32(IdleComma) | uint32(IdleAlignment)<<8 | uint32(IdleAlignment)<<16 | 0xB5<<24,
	K:    0x7,
}

// Packet type discriminators carried in the first payload word.
const (
	TypeDataStream        = 0x01
	TypeControlAckNoTag   = 0x03
	TypeTestPacket        = 0x04
	TypeControlAckWithTag = 0x06
	TypeEvent             = 0x07
	TypeHeartbeat         = 0x09
)

// PacketKind is the classification the arbiter assigns to a packet.
type PacketKind uint8

// Packet kinds, one per arbiter output port.
const (
	KindNone PacketKind = iota
	KindStream
	KindTest
	KindHeartbeat
	KindCommand
)

// String returns the kind name.
func (k PacketKind) String() string {
	switch k {
	case KindStream:
		return "stream"
	case KindTest:
		return "test"
	case KindHeartbeat:
		return "heartbeat"
	case KindCommand:
		return "command"
	default:
		return "none"
	}
}

// ClassifyType maps a packet type byte to its kind. Unknown types map to
// KindNone.
func ClassifyType(t uint8) PacketKind {
	switch t {
	case TypeDataStream:
		return KindStream
	case TypeTestPacket:
		return KindTest
	case TypeHeartbeat:
		return KindHeartbeat
	case TypeControlAckNoTag, TypeControlAckWithTag, TypeEvent:
		return KindCommand
	default:
		return KindNone
	}
}

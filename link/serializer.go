package link

// Serializer splits words into characters, lane 0 first. It joins the word
// section of the transmit pipeline (idle and trigger-ack insertion at word
// boundaries) to the character section (trigger insertion at character
// boundaries). EOP is carried on the last character of an EOP word.
type Serializer struct {
	up   WordSource
	lane int
}

// NewSerializer returns a serializer reading from up.
func NewSerializer(up WordSource) *Serializer {
	return &Serializer{up: up}
}

// Out presents the current lane of the upstream word.
func (s *Serializer) Out() (Char, bool) {
	w, stb := s.up.Out()
	if !stb {
		return Char{}, false
	}
	c := w.Lane(s.lane)
	c.EOP = w.EOP && s.lane == Lanes-1
	return c, true
}

// Step ends the tick. The upstream word is acknowledged together with its
// last character. With no word presented the serializer sits on lane 0 and
// passes ack through.
func (s *Serializer) Step(ack bool) {
	_, stb := s.up.Out()
	last := s.lane == Lanes-1
	s.up.Step(ack && (last || !stb))
	if transfer(stb, ack) {
		s.lane = (s.lane + 1) % Lanes
	}
}

// Deserializer groups characters into words, lane 0 first. It is the
// inverse of Serializer and is used by HALs that carry a character stream.
type Deserializer struct {
	w    Word
	lane int
}

// Push adds one character and returns the completed word, if any.
func (d *Deserializer) Push(c Char) (Word, bool) {
	d.w.Data |= uint32(c.Data) << (CharWidth * d.lane)
	if c.K {
		d.w.K |= 1 << d.lane
	}
	d.lane++
	if d.lane < Lanes {
		return Word{}, false
	}
	w := d.w
	w.EOP = c.EOP
	d.w = Word{}
	d.lane = 0
	return w, true
}

// Reset discards a partial word.
func (d *Deserializer) Reset() {
	d.w = Word{}
	d.lane = 0
}

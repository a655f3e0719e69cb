package link

import (
	"hash/crc32"
	"testing"
)

func TestCRCRoundTrip(t *testing.T) {
	payload := []uint32{0x00000001, 0x00000002, 0x00000003}

	c := NewCRC()
	for _, w := range payload {
		c.Update(w)
	}
	trailer := c.Value()
	if trailer != Checksum(payload) {
		t.Fatalf("Value() = %#08x, Checksum() = %#08x", trailer, Checksum(payload))
	}

	c.Update(trailer)
	if !c.Valid() {
		t.Errorf("register after trailer = %#08x, want %#08x", c.Register(), CRCCheck)
	}
}

func TestCRCCorruptTrailer(t *testing.T) {
	payload := []uint32{1, 2, 3}
	trailer := Checksum(payload)

	for bit := 0; bit < WordWidth; bit++ {
		c := NewCRC()
		for _, w := range payload {
			c.Update(w)
		}
		c.Update(trailer ^ 1<<bit)
		if c.Valid() {
			t.Errorf("bit %d flipped: register reports valid", bit)
		}
	}
}

func TestCRCCorruptPayload(t *testing.T) {
	payload := []uint32{1, 2, 3}
	trailer := Checksum(payload)

	for i := range payload {
		for bit := 0; bit < WordWidth; bit++ {
			words := append([]uint32(nil), payload...)
			words[i] ^= 1 << bit

			c := NewCRC()
			for _, w := range words {
				c.Update(w)
			}
			c.Update(trailer)
			if c.Valid() {
				t.Errorf("word %d bit %d flipped: register reports valid", i, bit)
			}

			chk := NewCRCChecker(Discard)
			for _, w := range words {
				chk.Step(Word{Data: w}, true)
			}
			chk.Step(Word{Data: trailer, EOP: true}, true)
			if !chk.Error() {
				t.Errorf("word %d bit %d flipped: checker raised no error", i, bit)
			}
			if chk.Errors() != 1 {
				t.Errorf("word %d bit %d flipped: Errors() = %d, want 1", i, bit, chk.Errors())
			}
		}
	}
}

func TestCRCMatchesReflectedEngine(t *testing.T) {
	msg := []byte("12345678")
	words := []uint32{0x34333231, 0x38373635}

	// Same polynomial, seed and bit order; crc32 also complements the
	// result.
	if got, want := Checksum(words), ^crc32.ChecksumIEEE(msg); got != want {
		t.Errorf("Checksum() = %#08x, want %#08x", got, want)
	}
}

func TestCRCReset(t *testing.T) {
	c := NewCRC()
	if c.Value() != CRCSeed {
		t.Errorf("seeded Value() = %#08x, want %#08x", c.Value(), uint32(CRCSeed))
	}
	c.Update(0xDEADBEEF)
	c.Reset()
	if c.Value() != CRCSeed {
		t.Errorf("Value() after Reset = %#08x", c.Value())
	}
}

func TestCRCChecker(t *testing.T) {
	payload := []uint32{1, 2, 3}

	tests := []struct {
		name    string
		trailer uint32
		wantErr bool
	}{
		{"intact", Checksum(payload), false},
		{"corrupt", Checksum(payload) ^ 0x10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			c := NewCRCChecker(rec)

			for _, d := range payload {
				c.Step(Word{Data: d}, true)
				if c.Error() {
					t.Fatal("error pulse before trailer")
				}
			}
			c.Step(Word{Data: tt.trailer, EOP: true}, true)
			if c.Error() != tt.wantErr {
				t.Errorf("Error() = %v, want %v", c.Error(), tt.wantErr)
			}
			c.Step(Word{}, false)
			if c.Error() {
				t.Error("error pulse lasted more than one tick")
			}

			if len(rec.words) != len(payload) {
				t.Fatalf("forwarded %d words, want %d", len(rec.words), len(payload))
			}
			for i, w := range rec.words {
				if w.Data != payload[i] {
					t.Errorf("word %d = %#x, want %#x", i, w.Data, payload[i])
				}
				if w.EOP != (i == len(payload)-1) {
					t.Errorf("word %d EOP = %v", i, w.EOP)
				}
			}
		})
	}
}

func TestCRCCheckerResetsBetweenPackets(t *testing.T) {
	c := NewCRCChecker(Discard)
	for _, p := range [][]uint32{{7}, {8, 9}, {10, 11, 12}} {
		for _, d := range p {
			c.Step(Word{Data: d}, true)
		}
		c.Step(Word{Data: Checksum(p), EOP: true}, true)
	}
	if c.Errors() != 0 {
		t.Errorf("Errors() = %d, want 0", c.Errors())
	}
}

package link

import "testing"

func TestVote(t *testing.T) {
	tests := []struct {
		name string
		quad [Lanes]Char
		want Char
	}{
		{
			name: "unanimous",
			quad: [Lanes]Char{{Data: 0x5A}, {Data: 0x5A}, {Data: 0x5A}, {Data: 0x5A}},
			want: Char{Data: 0x5A},
		},
		{
			name: "single bit error in lane 2",
			quad: [Lanes]Char{{Data: 0x5A}, {Data: 0x5A}, {Data: 0x5E}, {Data: 0x5A}},
			want: Char{Data: 0x5A},
		},
		{
			name: "single bit error in lane 0",
			quad: [Lanes]Char{{Data: 0xFA}, {Data: 0x7A}, {Data: 0x7A}, {Data: 0x7A}},
			want: Char{Data: 0x7A},
		},
		{
			name: "errors at different bits in every lane",
			quad: [Lanes]Char{{Data: 0x01}, {Data: 0x02}, {Data: 0x04}, {Data: 0x08}},
			want: Char{Data: 0x00},
		},
		{
			name: "control marker missing in one lane",
			quad: [Lanes]Char{{Data: 0xFB, K: true}, {Data: 0xFB}, {Data: 0xFB, K: true}, {Data: 0xFB, K: true}},
			want: Char{Data: 0xFB, K: true},
		},
		{
			name: "control marker in two lanes only",
			quad: [Lanes]Char{{Data: 0xFB, K: true}, {Data: 0xFB}, {Data: 0xFB}, {Data: 0xFB, K: true}},
			want: Char{Data: 0xFB},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Vote(tt.quad); got != tt.want {
				t.Errorf("Vote() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestVoteCorrectsAnySingleBitError(t *testing.T) {
	for b := 0; b < 256; b++ {
		for lane := 0; lane < Lanes; lane++ {
			for bit := 0; bit < CharWidth; bit++ {
				var q [Lanes]Char
				for i := range q {
					q[i] = Char{Data: uint8(b)}
				}
				q[lane].Data ^= 1 << bit
				if got := Vote(q); got.Data != uint8(b) || got.K {
					t.Fatalf("byte %#02x lane %d bit %d: Vote() = %+v", b, lane, bit, got)
				}
			}
		}
	}
}

func TestDCharDecoderLatency(t *testing.T) {
	rec := &recorder{}
	d := NewDCharDecoder(rec)

	in := []Word{
		{Data: 0x5A5E5A5A},
		ControlWord(PakEnd),
	}
	d.Step(in[0], true)
	d.Step(in[1], true)
	if len(rec.words) != 0 {
		t.Fatalf("words after 2 ticks = %d, want 0", len(rec.words))
	}

	d.Step(Word{}, false)
	if len(rec.words) != 1 {
		t.Fatalf("words after 3 ticks = %d, want 1", len(rec.words))
	}
	d.Step(Word{}, false)
	d.Step(Word{}, false)

	if len(rec.words) != 2 {
		t.Fatalf("words = %d, want 2", len(rec.words))
	}
	if w := rec.words[0]; w.DChar != 0x5A || w.DCharK || w.Data != in[0].Data {
		t.Errorf("word 0 = %s dchar %#02x k=%v", w, w.DChar, w.DCharK)
	}
	if !rec.words[1].Is(PakEnd) {
		t.Errorf("word 1 not voted as pak_end: %s", rec.words[1])
	}
}

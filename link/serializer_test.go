package link

import "testing"

func TestSerializerLaneOrder(t *testing.T) {
	w := Word{Data: 0x44332211, K: 0x2, EOP: true}
	s := NewSerializer(&sliceSource{words: []Word{w}})

	var got []Char
	for i := 0; i < Lanes+1; i++ {
		if c, ok := s.Out(); ok {
			got = append(got, c)
		}
		s.Step(true)
	}

	want := []Char{
		{Data: 0x11},
		{Data: 0x22, K: true},
		{Data: 0x33},
		{Data: 0x44, EOP: true},
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("char %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSerializerRoundTrip(t *testing.T) {
	words := []Word{
		IdleWord,
		ControlWord(PakStart),
		{Data: 0xCAFEF00D},
		{Data: 0x12345678, EOP: true},
	}
	s := NewSerializer(&sliceSource{words: words})

	var d Deserializer
	var got []Word
	for i := 0; i < len(words)*Lanes; i++ {
		c, ok := s.Out()
		if !ok {
			t.Fatalf("tick %d: nothing presented", i)
		}
		s.Step(true)
		if w, ok := d.Push(c); ok {
			got = append(got, w)
		}
	}

	if len(got) != len(words) {
		t.Fatalf("got %d words, want %d", len(got), len(words))
	}
	for i := range words {
		if got[i] != words[i] {
			t.Errorf("word %d = %s, want %s", i, got[i], words[i])
		}
	}
}

func TestSerializerStall(t *testing.T) {
	src := &sliceSource{words: []Word{{Data: 0x04030201}}}
	s := NewSerializer(src)

	s.Step(true)
	s.Step(false)
	c, _ := s.Out()
	if c.Data != 0x02 {
		t.Errorf("after stall Out() = %+v, want lane 1", c)
	}
	if src.i != 0 {
		t.Error("upstream word acknowledged before its last lane")
	}
}

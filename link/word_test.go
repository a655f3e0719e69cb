package link

import "testing"

func TestKCodeValues(t *testing.T) {
	tests := []struct {
		name string
		code KCode
		x, y uint8
		want uint8
	}{
		{"pak_start", PakStart, 27, 7, 0xFB},
		{"pak_end", PakEnd, 29, 7, 0xFD},
		{"io_ack", IOAck, 28, 6, 0xDC},
		{"idle_comma", IdleComma, 28, 5, 0xBC},
		{"idle_alignment", IdleAlignment, 28, 1, 0x3C},
		{"trig_indic_28_2", TrigIndic28_2, 28, 2, 0x5C},
		{"trig_indic_28_4", TrigIndic28_4, 28, 4, 0x9C},
		{"stream_marker", StreamMarker, 28, 3, 0x7C},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if uint8(tt.code) != tt.want {
				t.Errorf("value = %#02x, want %#02x", uint8(tt.code), tt.want)
			}
			if K(tt.x, tt.y) != tt.code {
				t.Errorf("K(%d, %d) = %#02x, want %#02x", tt.x, tt.y, uint8(K(tt.x, tt.y)), tt.want)
			}
		})
	}
}

func TestKCodeString(t *testing.T) {
	if got := PakStart.String(); got != "K27.7" {
		t.Errorf("String() = %q, want %q", got, "K27.7")
	}
	if got := IdleAlignment.String(); got != "K28.1" {
		t.Errorf("String() = %q, want %q", got, "K28.1")
	}
}

func TestIdleWord(t *testing.T) {
	q := IdleWord.Quad()
	want := [Lanes]Char{
		{Data: 0xBC, K: true},
		{Data: 0x3C, K: true},
		{Data: 0x3C, K: true},
		{Data: 0xB5},
	}
	if q != want {
		t.Errorf("Quad() = %v, want %v", q, want)
	}
	if !IdleWord.IsIdle() {
		t.Error("IdleWord.IsIdle() = false")
	}
	if DataWord(0xBC).IsIdle() {
		t.Error("data word reported idle")
	}
}

func TestControlWord(t *testing.T) {
	w := ControlWord(PakStart)
	if w.Data != 0xFBFBFBFB || w.K != 0xF {
		t.Errorf("ControlWord(PakStart) = %s", w)
	}
	if !voted(w).Is(PakStart) {
		t.Error("voted control word does not match its code")
	}
	if voted(DataWord(0xFB)).Is(PakStart) {
		t.Error("data 0xFB matched as pak_start")
	}
}

func TestClassifyType(t *testing.T) {
	tests := []struct {
		typ  uint8
		want PacketKind
	}{
		{TypeDataStream, KindStream},
		{TypeTestPacket, KindTest},
		{TypeHeartbeat, KindHeartbeat},
		{TypeControlAckNoTag, KindCommand},
		{TypeControlAckWithTag, KindCommand},
		{TypeEvent, KindCommand},
		{0x00, KindNone},
		{0x55, KindNone},
	}

	for _, tt := range tests {
		if got := ClassifyType(tt.typ); got != tt.want {
			t.Errorf("ClassifyType(%#02x) = %s, want %s", tt.typ, got, tt.want)
		}
	}
}

package link

import "testing"

// frame wraps payload words the way PacketWrapper does.
func frame(payload ...Word) []Word {
	out := []Word{ControlWord(PakStart)}
	out = append(out, payload...)
	end := ControlWord(PakEnd)
	end.EOP = true
	return append(out, end)
}

func TestPacketWrapper(t *testing.T) {
	src := &sliceSource{words: []Word{
		{Data: 0x0A},
		{Data: 0x0B, EOP: true},
		{Data: 0x0C, EOP: true},
	}}
	p := NewPacketWrapper(src)

	out := pullWords(p, 12)
	want := append(frame(Word{Data: 0x0A}, Word{Data: 0x0B}), frame(Word{Data: 0x0C})...)

	if len(out) != len(want) {
		t.Fatalf("out = %v, want %v", out, want)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("word %d = %s, want %s", i, out[i], want[i])
		}
	}
}

type arbiterPorts struct {
	stream, test, heartbeat, command *recorder
}

func newTestArbiter() (*PacketArbiter, arbiterPorts) {
	p := arbiterPorts{&recorder{}, &recorder{}, &recorder{}, &recorder{}}
	return NewPacketArbiter(p.stream, p.test, p.heartbeat, p.command), p
}

func TestPacketArbiterClassification(t *testing.T) {
	payload := []Word{{Data: 0x11111111}, {Data: 0x22222222}, {Data: 0x33333333}}

	tests := []struct {
		name     string
		typ      uint8
		port     func(arbiterPorts) *recorder
		withType bool
	}{
		{"stream", TypeDataStream, func(p arbiterPorts) *recorder { return p.stream }, false},
		{"test", TypeTestPacket, func(p arbiterPorts) *recorder { return p.test }, false},
		{"heartbeat", TypeHeartbeat, func(p arbiterPorts) *recorder { return p.heartbeat }, false},
		{"control ack", TypeControlAckNoTag, func(p arbiterPorts) *recorder { return p.command }, true},
		{"control ack tagged", TypeControlAckWithTag, func(p arbiterPorts) *recorder { return p.command }, true},
		{"event", TypeEvent, func(p arbiterPorts) *recorder { return p.command }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ports := newTestArbiter()
			in := append([]Word{DataWord(tt.typ)}, payload...)
			feed(a, votedAll(frame(in...)), 2)

			want := payload
			if tt.withType {
				want = in
			}
			got := tt.port(ports).words
			if len(got) != len(want) {
				t.Fatalf("port got %d words, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i].Data != want[i].Data {
					t.Errorf("word %d = %#08x, want %#08x", i, got[i].Data, want[i].Data)
				}
				if got[i].EOP != (i == len(want)-1) {
					t.Errorf("word %d EOP = %v", i, got[i].EOP)
				}
			}

			total := len(ports.stream.words) + len(ports.test.words) +
				len(ports.heartbeat.words) + len(ports.command.words)
			if total != len(want) {
				t.Errorf("words routed to other ports: %d", total-len(want))
			}
			if a.DecodeErrors() != 0 {
				t.Errorf("DecodeErrors() = %d", a.DecodeErrors())
			}
			if a.Packets(ClassifyType(tt.typ)) != 1 {
				t.Errorf("Packets(%s) = %d", ClassifyType(tt.typ), a.Packets(ClassifyType(tt.typ)))
			}
		})
	}
}

func TestPacketArbiterPulses(t *testing.T) {
	a, _ := newTestArbiter()

	in := votedAll(frame(DataWord(TypeHeartbeat), DataWord(0)))
	var heartbeat, test int
	for _, w := range in {
		a.Step(w, true)
		if a.RecvHeartbeat() {
			heartbeat++
		}
		if a.RecvTestPacket() {
			test++
		}
	}
	if heartbeat != 1 || test != 0 {
		t.Errorf("heartbeat pulses = %d, test pulses = %d", heartbeat, test)
	}
}

func TestPacketArbiterUnknownType(t *testing.T) {
	a, ports := newTestArbiter()

	in := votedAll(frame(DataWord(0x55), DataWord(1), DataWord(2)))
	pulses := 0
	for _, w := range in {
		a.Step(w, true)
		if a.DecodeError() {
			pulses++
		}
	}

	if pulses != 1 || a.DecodeErrors() != 1 {
		t.Errorf("pulses = %d, DecodeErrors() = %d, want 1", pulses, a.DecodeErrors())
	}
	for name, r := range map[string]*recorder{
		"stream": ports.stream, "test": ports.test,
		"heartbeat": ports.heartbeat, "command": ports.command,
	} {
		if len(r.words) != 0 {
			t.Errorf("%s port got %d words", name, len(r.words))
		}
	}

	// The arbiter resynchronizes on the next start marker.
	feed(a, votedAll(frame(DataWord(TypeDataStream), DataWord(9))), 1)
	if len(ports.stream.words) != 1 || ports.stream.words[0].DChar != 9 {
		t.Errorf("stream port after resync = %v", ports.stream.words)
	}
}

func TestPacketArbiterStartInsidePacket(t *testing.T) {
	a, ports := newTestArbiter()

	in := votedAll([]Word{
		ControlWord(PakStart),
		DataWord(TypeDataStream),
		DataWord(1),
		DataWord(2),
	})
	in = append(in, votedAll(frame(DataWord(TypeDataStream), DataWord(3)))...)
	feed(a, in, 1)

	if a.DecodeErrors() != 1 {
		t.Errorf("DecodeErrors() = %d, want 1", a.DecodeErrors())
	}
	got := ports.stream.words
	if len(got) != 3 {
		t.Fatalf("stream words = %v", got)
	}
	if !got[1].EOP || got[1].DChar != 2 {
		t.Errorf("cut packet not closed with EOP: %v", got[:2])
	}
	if !got[2].EOP || got[2].DChar != 3 {
		t.Errorf("second packet = %v", got[2])
	}
}

func TestPacketArbiterDropsIdle(t *testing.T) {
	a, ports := newTestArbiter()

	in := votedAll([]Word{
		IdleWord,
		ControlWord(PakStart),
		IdleWord,
		DataWord(TypeDataStream),
		DataWord(1),
		IdleWord,
		DataWord(2),
	})
	end := ControlWord(PakEnd)
	end.EOP = true
	in = append(in, voted(end))
	feed(a, in, 1)

	got := ports.stream.words
	if len(got) != 2 || got[0].DChar != 1 || got[1].DChar != 2 || !got[1].EOP {
		t.Errorf("stream words = %v", got)
	}
	if a.DecodeErrors() != 0 {
		t.Errorf("DecodeErrors() = %d", a.DecodeErrors())
	}
}

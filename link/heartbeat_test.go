package link

import "testing"

func TestHeartbeatReader(t *testing.T) {
	h := NewHeartbeatReader()
	if _, ok := h.Latest(); ok {
		t.Fatal("Latest() valid before any heartbeat")
	}

	hb := Heartbeat{HostID: 0x12345678, Timestamp: 0x0102030405060708}
	words := votedAll(HeartbeatPayload(hb))
	// Trailing CRC word.
	words = append(words, Word{Data: 0xDEADBEEF, EOP: true})

	received := 0
	for _, w := range words {
		h.Step(w, true)
		if h.Received() {
			received++
		}
	}

	if received != 1 || h.Count() != 1 {
		t.Errorf("received = %d Count() = %d, want 1", received, h.Count())
	}
	got, ok := h.Latest()
	if !ok || got != hb {
		t.Errorf("Latest() = %+v, %v, want %+v", got, ok, hb)
	}
}

func TestHeartbeatReaderShortPacket(t *testing.T) {
	h := NewHeartbeatReader()

	hb := Heartbeat{HostID: 1, Timestamp: 2}
	feed(h, votedAll(append(HeartbeatPayload(hb), Word{EOP: true})), 0)

	short := votedAll(HeartbeatPayload(Heartbeat{HostID: 9, Timestamp: 9})[:8])
	short[len(short)-1].EOP = true
	feed(h, short, 0)

	if got, _ := h.Latest(); got != hb {
		t.Errorf("short packet replaced heartbeat: %+v", got)
	}
	if h.Count() != 1 {
		t.Errorf("Count() = %d, want 1", h.Count())
	}
}

func TestHeartbeatPayload(t *testing.T) {
	words := HeartbeatPayload(Heartbeat{HostID: 0xA1B2C3D4, Timestamp: 0x1122334455667788})
	want := []uint8{0xA1, 0xB2, 0xC3, 0xD4, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}

	if len(words) != HeartbeatChars {
		t.Fatalf("len = %d, want %d", len(words), HeartbeatChars)
	}
	for i, w := range words {
		if w.Data != Replicate(want[i]) {
			t.Errorf("word %d = %#08x, want %#08x", i, w.Data, Replicate(want[i]))
		}
	}
}

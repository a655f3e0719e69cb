package link

// HeartbeatChars is the number of duplicated characters carrying the
// heartbeat fields: a 4-byte host id then an 8-byte device timestamp.
const HeartbeatChars = 12

// Heartbeat is the latest heartbeat received from the device.
type Heartbeat struct {
	HostID    uint32 `json:"host_id"`
	Timestamp uint64 `json:"timestamp"`
}

// HeartbeatReader extracts the host id and device timestamp from
// heartbeat packets. Each payload word carries one duplicated character;
// fields are most significant byte first. Words past the twelfth, such as
// the CRC trailer, are ignored.
type HeartbeatReader struct {
	buf [HeartbeatChars]uint8
	cnt int

	latest   Heartbeat
	valid    bool
	received bool
	count    uint64
}

// NewHeartbeatReader returns an empty reader.
func NewHeartbeatReader() *HeartbeatReader {
	return &HeartbeatReader{}
}

// Ready always returns true.
func (h *HeartbeatReader) Ready() bool { return true }

// Step consumes one word.
func (h *HeartbeatReader) Step(w Word, stb bool) {
	h.received = false
	if !stb {
		return
	}
	if h.cnt < HeartbeatChars {
		h.buf[h.cnt] = w.DChar
	}
	h.cnt++
	if !w.EOP {
		return
	}
	if h.cnt >= HeartbeatChars {
		h.latest = decodeHeartbeat(h.buf)
		h.valid = true
		h.received = true
		h.count++
	}
	h.cnt = 0
}

func decodeHeartbeat(b [HeartbeatChars]uint8) Heartbeat {
	var hb Heartbeat
	for _, c := range b[:4] {
		hb.HostID = hb.HostID<<8 | uint32(c)
	}
	for _, c := range b[4:] {
		hb.Timestamp = hb.Timestamp<<8 | uint64(c)
	}
	return hb
}

// Latest returns the most recent heartbeat. ok is false until one has been
// received.
func (h *HeartbeatReader) Latest() (hb Heartbeat, ok bool) {
	return h.latest, h.valid
}

// Received reports that a heartbeat completed last tick.
func (h *HeartbeatReader) Received() bool { return h.received }

// Count returns the number of heartbeats decoded.
func (h *HeartbeatReader) Count() uint64 { return h.count }

// HeartbeatPayload returns the payload words of a heartbeat packet for hb,
// one duplicated character per word.
func HeartbeatPayload(hb Heartbeat) []Word {
	words := make([]Word, 0, HeartbeatChars)
	for i := 3; i >= 0; i-- {
		words = append(words, DataWord(uint8(hb.HostID>>(8*i))))
	}
	for i := 7; i >= 0; i-- {
		words = append(words, DataWord(uint8(hb.Timestamp>>(8*i))))
	}
	return words
}

package link

import (
	"fmt"
	"sync/atomic"

	"github.com/ardnew/softcxp/pkg"
)

// commandSlot is one packet region of the command buffer.
type commandSlot struct {
	words []uint32
	n     int
}

// CommandReader stores received command packets in a ring of fixed-size
// slots for the host to read.
//
// The reader owns the write cursor, the host owns the read cursor. Both are
// published atomically and nothing else is shared, so the host may read
// slots in [ReadPointer, WritePointer) from another goroutine.
//
// When a packet completes and the next slot is the unread one under the read
// cursor, the write cursor stays put and the sticky buffer error is raised:
// the next packet overwrites the slot just written. The ring therefore holds
// at most Slots()-1 unread packets.
type CommandReader struct {
	slots []commandSlot

	writePtr atomic.Uint32
	readPtr  atomic.Uint32

	addr      int
	truncated bool

	pulse     bool
	sticky    atomic.Bool
	overflows atomic.Uint64
	packets   atomic.Uint64
}

// NewCommandReader returns a reader with nslot slots of depth words.
func NewCommandReader(depth, nslot int) *CommandReader {
	r := &CommandReader{slots: make([]commandSlot, nslot)}
	for i := range r.slots {
		r.slots[i].words = make([]uint32, depth)
	}
	return r
}

// Ready always returns true; overflow is detected, not prevented.
func (r *CommandReader) Ready() bool { return true }

// Step stores one word.
func (r *CommandReader) Step(w Word, stb bool) {
	r.pulse = false
	if !stb {
		return
	}

	slot := &r.slots[r.writePtr.Load()]
	if r.addr < len(slot.words) {
		slot.words[r.addr] = w.Data
		r.addr++
	} else if !r.truncated {
		r.truncated = true
		r.raise("packet exceeds slot", "depth", len(slot.words))
	}

	if !w.EOP {
		return
	}

	slot.n = r.addr
	r.addr = 0
	r.truncated = false
	r.packets.Add(1)

	wp := r.writePtr.Load()
	next := (wp + 1) % uint32(len(r.slots))
	if next == r.readPtr.Load() {
		r.raise("write cursor reached unread slot", "slot", wp)
		return
	}
	r.writePtr.Store(next)
}

func (r *CommandReader) raise(reason string, args ...any) {
	r.pulse = true
	r.sticky.Store(true)
	r.overflows.Add(1)
	pkg.LogWarn(pkg.ComponentBuffer, "command buffer error",
		append([]any{"reason", reason}, args...)...)
}

// Slots returns the number of slots.
func (r *CommandReader) Slots() int { return len(r.slots) }

// Depth returns the slot capacity in words.
func (r *CommandReader) Depth() int {
	if len(r.slots) == 0 {
		return 0
	}
	return len(r.slots[0].words)
}

// WritePointer returns the slot the next packet is written to.
func (r *CommandReader) WritePointer() int { return int(r.writePtr.Load()) }

// ReadPointer returns the host read cursor.
func (r *CommandReader) ReadPointer() int { return int(r.readPtr.Load()) }

// SetReadPointer moves the host read cursor.
func (r *CommandReader) SetReadPointer(p int) error {
	if p < 0 || p >= len(r.slots) {
		return fmt.Errorf("%w: read pointer %d", pkg.ErrInvalidParameter, p)
	}
	r.readPtr.Store(uint32(p))
	return nil
}

// Unread returns the number of complete packets the host has not read.
func (r *CommandReader) Unread() int {
	n := len(r.slots)
	return (int(r.writePtr.Load()) - int(r.readPtr.Load()) + n) % n
}

// Slot returns a copy of the packet stored in slot i.
func (r *CommandReader) Slot(i int) ([]uint32, error) {
	if i < 0 || i >= len(r.slots) {
		return nil, fmt.Errorf("%w: slot %d", pkg.ErrInvalidParameter, i)
	}
	s := &r.slots[i]
	out := make([]uint32, s.n)
	copy(out, s.words[:s.n])
	return out, nil
}

// Next returns the packet under the read cursor and advances it. It
// returns pkg.ErrNoPacket when there is nothing unread.
func (r *CommandReader) Next() ([]uint32, error) {
	if r.Unread() == 0 {
		return nil, pkg.ErrNoPacket
	}
	rp := r.ReadPointer()
	words, err := r.Slot(rp)
	if err != nil {
		return nil, err
	}
	r.readPtr.Store(uint32((rp + 1) % len(r.slots)))
	return words, nil
}

// BufferError reports the error pulse of the last tick.
func (r *CommandReader) BufferError() bool { return r.pulse }

// Sticky reports the sticky buffer error flag.
func (r *CommandReader) Sticky() bool { return r.sticky.Load() }

// AckError clears the sticky buffer error flag.
func (r *CommandReader) AckError() { r.sticky.Store(false) }

// Overflows returns the number of buffer errors raised.
func (r *CommandReader) Overflows() uint64 { return r.overflows.Load() }

// Packets returns the number of packets stored.
func (r *CommandReader) Packets() uint64 { return r.packets.Load() }

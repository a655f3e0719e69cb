package loopback

import (
	"context"
	"sync"

	"github.com/ardnew/softcxp/host/hal"
	"github.com/ardnew/softcxp/link"
	"github.com/ardnew/softcxp/pkg"
)

// DefaultQueueDepth is the receive queue capacity in words.
const DefaultQueueDepth = 4096

// LinkHAL implements hal.LinkHAL with an in-memory device that echoes the
// host's word stream back to the host receiver.
//
// Trigger sequences are removed from the character stream before the
// remaining characters are regrouped into words, so a trigger inserted in
// the middle of a word does not break word alignment. Each removed trigger
// is recorded as a device-side event and, with EchoTriggers set, returned
// to the host as a device-originated trigger.
type LinkHAL struct {
	// EchoTriggers returns each host trigger to the host receiver as the
	// three-word device trigger form: indicator, delay, link trigger 0.
	EchoTriggers bool

	// Speed is reported by Status.
	Speed hal.Speed

	mu      sync.Mutex
	running bool
	closed  bool

	des   link.Deserializer
	trig  []link.Char
	queue []link.Word
	head  int
	depth int
	drops uint64

	triggers []link.TriggerEvent
	chars    uint64
}

// New creates a loopback HAL with the default queue depth.
func New() *LinkHAL {
	return NewWithDepth(DefaultQueueDepth)
}

// NewWithDepth creates a loopback HAL whose receive queue holds depth words.
func NewWithDepth(depth int) *LinkHAL {
	if depth < 1 {
		depth = 1
	}
	return &LinkHAL{
		Speed: hal.SpeedCXP6,
		depth: depth,
		queue: make([]link.Word, 0, depth),
	}
}

// Init initializes the loopback HAL.
func (l *LinkHAL) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return pkg.ErrClosed
	}
	pkg.LogDebug(pkg.ComponentHAL, "loopback HAL initialized", "depth", l.depth)
	return nil
}

// Start brings the link up.
func (l *LinkHAL) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return pkg.ErrClosed
	}
	l.running = true
	return nil
}

// Stop takes the link down and discards partial words.
func (l *LinkHAL) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = false
	l.des.Reset()
	l.trig = l.trig[:0]
	return nil
}

// Close releases the HAL.
func (l *LinkHAL) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = false
	l.closed = true
	l.queue = l.queue[:0]
	l.head = 0
	return nil
}

// LinkReady reports whether the link is up.
func (l *LinkHAL) LinkReady() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// TxReady reports whether the link is up.
func (l *LinkHAL) TxReady() bool {
	return l.LinkReady()
}

// Status returns a snapshot of the link state.
func (l *LinkHAL) Status() hal.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return hal.Status{
		Up:       l.running,
		TxReady:  l.running,
		Speed:    l.Speed,
		RxQueued: len(l.queue) - l.head,
		RxDrops:  l.drops,
	}
}

// Transmit accepts one character from the host.
func (l *LinkHAL) Transmit(c link.Char) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return pkg.ErrLinkDown
	}
	l.chars++

	if len(l.trig) > 0 || isTriggerIndicator(c) {
		l.trig = append(l.trig, c)
		if len(l.trig) == link.TriggerLength {
			l.completeTrigger()
		}
		return nil
	}

	if w, ok := l.des.Push(c); ok {
		l.push(w)
	}
	return nil
}

func isTriggerIndicator(c link.Char) bool {
	return c.K && (c.Data == uint8(link.TrigIndic28_2) || c.Data == uint8(link.TrigIndic28_4))
}

func (l *LinkHAL) completeTrigger() {
	// Delay is sent three times; take the majority.
	d := l.trig[3].Data&l.trig[4].Data | l.trig[3].Data&l.trig[5].Data | l.trig[4].Data&l.trig[5].Data
	ev := link.TriggerEvent{Delay: d}
	indicator := link.KCode(l.trig[0].Data)
	l.trig = l.trig[:0]

	l.triggers = append(l.triggers, ev)
	pkg.LogDebug(pkg.ComponentHAL, "loopback trigger", "delay", d, "indicator", indicator.String())

	if l.EchoTriggers {
		l.push(link.ControlWord(indicator))
		l.push(link.DataWord(ev.Delay))
		l.push(link.DataWord(ev.LinkTrigger))
	}
}

// push queues a word for the host receiver. Caller must hold mu.
func (l *LinkHAL) push(w link.Word) {
	if len(l.queue)-l.head >= l.depth {
		l.drops++
		return
	}
	if l.head > 0 && len(l.queue) == cap(l.queue) {
		n := copy(l.queue, l.queue[l.head:])
		l.queue = l.queue[:n]
		l.head = 0
	}
	l.queue = append(l.queue, w)
}

// Receive returns the next queued word.
func (l *LinkHAL) Receive() (link.Word, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running || l.head == len(l.queue) {
		return link.Word{}, false
	}
	w := l.queue[l.head]
	l.head++
	if l.head == len(l.queue) {
		l.queue = l.queue[:0]
		l.head = 0
	}
	return w, true
}

// Inject queues device-originated words for the host receiver. Words
// beyond the queue capacity are dropped and counted.
func (l *LinkHAL) Inject(words ...link.Word) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range words {
		l.push(w)
	}
}

// InjectPacket queues a framed device packet: start marker, type word,
// payload, an optional CRC trailer over the type word and payload, and the
// end marker.
func (l *LinkHAL) InjectPacket(typ uint8, payload []link.Word, withCRC bool) {
	words := make([]link.Word, 0, len(payload)+4)
	words = append(words, link.ControlWord(link.PakStart), link.DataWord(typ))
	words = append(words, payload...)
	if withCRC {
		data := make([]uint32, 0, len(payload)+1)
		data = append(data, link.Replicate(typ))
		for _, w := range payload {
			data = append(data, w.Data)
		}
		words = append(words, link.Word{Data: link.Checksum(data)})
	}
	words = append(words, link.ControlWord(link.PakEnd))
	l.Inject(words...)
}

// Triggers returns the trigger events received by the device.
func (l *LinkHAL) Triggers() []link.TriggerEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]link.TriggerEvent, len(l.triggers))
	copy(out, l.triggers)
	return out
}

// Chars returns the number of characters transmitted by the host.
func (l *LinkHAL) Chars() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.chars
}

// Ensure LinkHAL implements hal.LinkHAL.
var _ hal.LinkHAL = (*LinkHAL)(nil)

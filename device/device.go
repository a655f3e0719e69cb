package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ardnew/softcxp/device/hal"
	"github.com/ardnew/softcxp/link"
	"github.com/ardnew/softcxp/pkg"
)

// Command codes carried in the first word of a host control packet.
const (
	CommandNoTag   = 0x02
	CommandWithTag = 0x05
)

// Defaults.
const (
	DefaultQueueDepth    = 8192
	DefaultTickInterval  = time.Millisecond
	DefaultTicksPerBatch = 1024
)

// Config configures the emulated device.
type Config struct {
	// HostID is reported in heartbeats.
	HostID uint32

	// HeartbeatInterval is the number of ticks between heartbeats. Zero
	// disables heartbeats.
	HeartbeatInterval uint64

	// CheckCRC treats the last word of each host command as a CRC trailer.
	// Commands that fail the check are counted and not acknowledged.
	CheckCRC bool

	// AckTriggers answers every host trigger with a trigger acknowledgment.
	AckTriggers bool

	// QueueDepth is the transmit queue capacity in words.
	QueueDepth int

	// TickInterval and TicksPerBatch drive the step loop started by Start.
	// A zero interval leaves stepping to the caller.
	TickInterval  time.Duration
	TicksPerBatch int
}

// DefaultConfig returns the default device configuration.
func DefaultConfig() Config {
	return Config{
		HostID:        0x43585030,
		CheckCRC:      true,
		AckTriggers:   true,
		QueueDepth:    DefaultQueueDepth,
		TickInterval:  DefaultTickInterval,
		TicksPerBatch: DefaultTicksPerBatch,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.QueueDepth < 1 {
		return fmt.Errorf("%w: queue depth %d", pkg.ErrInvalidParameter, c.QueueDepth)
	}
	if c.TickInterval < 0 {
		return fmt.Errorf("%w: tick interval %v", pkg.ErrInvalidParameter, c.TickInterval)
	}
	if c.TickInterval > 0 && c.TicksPerBatch < 1 {
		return fmt.Errorf("%w: %d ticks per batch", pkg.ErrInvalidParameter, c.TicksPerBatch)
	}
	return nil
}

// Stats counts device traffic.
type Stats struct {
	Ticks          uint64 `json:"ticks"`
	Triggers       uint64 `json:"triggers"`
	TriggerAcks    uint64 `json:"trigger_acks"`
	Commands       uint64 `json:"commands"`
	CRCErrors      uint64 `json:"crc_errors"`
	TestPackets    uint64 `json:"test_packets"`
	ProtocolErrors uint64 `json:"protocol_errors"`
	Heartbeats     uint64 `json:"heartbeats"`
	StreamPackets  uint64 `json:"stream_packets"`
	WordsSent      uint64 `json:"words_sent"`
	TransmitErrors uint64 `json:"transmit_errors"`
	Dropped        uint64 `json:"dropped"`
}

// Device emulates the device end of a CoaXPress link.
//
// Each tick it takes up to one word's worth of host characters from the
// HAL and sends at most one queued word. Trigger sequences are removed
// from the character stream before it is regrouped into words. Host
// test packets are echoed unchanged. Host commands are answered with a
// control acknowledgment echoing the command body.
type Device struct {
	hal hal.DeviceHAL
	cfg Config

	// State
	running bool
	mutex   sync.Mutex
	stats   Stats

	des        link.Deserializer
	trig       []link.Char
	inPacket   bool
	packet     []uint32
	ackPending bool

	queue []link.Word
	head  int

	// Context for cancellation
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	pending []event

	// Callbacks
	cbMutex      sync.RWMutex
	onTrigger    func(link.TriggerEvent)
	onTriggerAck func()
	onCommand    func([]uint32)
}

type eventKind uint8

const (
	eventTrigger eventKind = iota
	eventTriggerAck
	eventCommand
)

type event struct {
	kind    eventKind
	trigger link.TriggerEvent
	command []uint32
}

// New creates a device for the given HAL.
func New(l hal.DeviceHAL, cfg Config) (*Device, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: nil HAL", pkg.ErrInvalidParameter)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Device{
		hal:   l,
		cfg:   cfg,
		queue: make([]link.Word, 0, cfg.QueueDepth),
	}, nil
}

// Config returns the device configuration.
func (d *Device) Config() Config { return d.cfg }

// Start initializes and starts the HAL, then starts the step loop unless
// the tick interval is zero.
func (d *Device) Start(ctx context.Context) error {
	d.mutex.Lock()
	if d.running {
		d.mutex.Unlock()
		return pkg.ErrAlreadyRunning
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.mutex.Unlock()

	if err := d.hal.Init(d.ctx); err != nil {
		d.cancel()
		return fmt.Errorf("init HAL: %w", err)
	}
	if err := d.hal.Start(); err != nil {
		d.cancel()
		return fmt.Errorf("start HAL: %w", err)
	}

	d.mutex.Lock()
	d.running = true
	if d.cfg.TickInterval > 0 {
		d.done = make(chan struct{})
		go d.loop(d.ctx, d.done)
	}
	d.mutex.Unlock()

	pkg.LogInfo(pkg.ComponentDevice, "device started",
		"hostID", d.cfg.HostID, "heartbeat", d.cfg.HeartbeatInterval)
	return nil
}

// Stop stops the step loop and the HAL.
func (d *Device) Stop() error {
	d.mutex.Lock()
	if !d.running {
		d.mutex.Unlock()
		return nil
	}
	d.running = false
	if d.cancel != nil {
		d.cancel()
	}
	done := d.done
	d.done = nil
	d.mutex.Unlock()

	if done != nil {
		<-done
	}
	if err := d.hal.Stop(); err != nil {
		return fmt.Errorf("stop HAL: %w", err)
	}

	pkg.LogInfo(pkg.ComponentDevice, "device stopped")
	return nil
}

// IsRunning returns true if the device is running.
func (d *Device) IsRunning() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.running
}

func (d *Device) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(d.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.TickN(d.cfg.TicksPerBatch)
		}
	}
}

// TickN runs n ticks.
func (d *Device) TickN(n int) {
	for i := 0; i < n; i++ {
		d.Tick()
	}
}

// Tick advances the device by one step.
func (d *Device) Tick() {
	d.mutex.Lock()
	d.step()
	events := d.pending
	d.pending = nil
	d.mutex.Unlock()

	d.dispatch(events)
}

func (d *Device) step() {
	d.stats.Ticks++

	for i := 0; i < link.Lanes; i++ {
		c, ok := d.hal.Receive()
		if !ok {
			break
		}
		d.receiveChar(c)
	}

	if n := d.cfg.HeartbeatInterval; n > 0 && d.stats.Ticks%n == 0 {
		hb := link.Heartbeat{HostID: d.cfg.HostID, Timestamp: d.stats.Ticks}
		if d.enqueuePacket(link.TypeHeartbeat, link.HeartbeatPayload(hb), false) == nil {
			d.stats.Heartbeats++
		}
	}

	d.transmit()
}

// transmit sends the head of the queue. The word stays queued while the
// HAL is busy.
func (d *Device) transmit() {
	if d.head == len(d.queue) {
		return
	}
	err := d.hal.Transmit(d.queue[d.head])
	switch {
	case err == nil:
		d.stats.WordsSent++
		d.head++
		if d.head == len(d.queue) {
			d.queue = d.queue[:0]
			d.head = 0
		}
	case errors.Is(err, pkg.ErrBusy):
	default:
		d.stats.TransmitErrors++
		pkg.LogDebug(pkg.ComponentDevice, "transmit failed", "error", err)
	}
}

func (d *Device) receiveChar(c link.Char) {
	if len(d.trig) > 0 || isTriggerIndicator(c) {
		d.trig = append(d.trig, c)
		if len(d.trig) == link.TriggerLength {
			d.completeTrigger()
		}
		return
	}
	if w, ok := d.des.Push(c); ok {
		d.receiveWord(w)
	}
}

func isTriggerIndicator(c link.Char) bool {
	return c.K && (c.Data == uint8(link.TrigIndic28_2) || c.Data == uint8(link.TrigIndic28_4))
}

func isControl(w link.Word, k link.KCode) bool {
	return w.K == 0xF && w.Data == link.Replicate(uint8(k))
}

func (d *Device) completeTrigger() {
	// Delay is sent three times; take the majority.
	dl := d.trig[3].Data&d.trig[4].Data | d.trig[3].Data&d.trig[5].Data | d.trig[4].Data&d.trig[5].Data
	// Indicator order K28.4 first marks link trigger mode.
	linkTriggerMode := d.trig[0].Data == uint8(link.TrigIndic28_4)
	d.trig = d.trig[:0]

	ev := link.TriggerEvent{Delay: dl}
	d.stats.Triggers++
	d.pending = append(d.pending, event{kind: eventTrigger, trigger: ev})
	pkg.LogDebug(pkg.ComponentDevice, "trigger received", "delay", dl, "linkTriggerMode", linkTriggerMode)

	if d.cfg.AckTriggers {
		d.enqueue(link.ControlWord(link.IOAck), link.DataWord(link.AckPayload))
	}
}

func (d *Device) receiveWord(w link.Word) {
	switch {
	case w.IsIdle():
	case d.ackPending:
		d.ackPending = false
		if w.K == 0 && w.Data == link.Replicate(link.AckPayload) {
			d.stats.TriggerAcks++
			d.pending = append(d.pending, event{kind: eventTriggerAck})
		} else {
			d.protocolError("bad trigger acknowledgment payload", w)
		}
	case isControl(w, link.IOAck):
		d.ackPending = true
	case isControl(w, link.PakStart):
		if d.inPacket {
			d.protocolError("start marker inside packet", w)
		}
		d.inPacket = true
		d.packet = d.packet[:0]
	case isControl(w, link.PakEnd):
		if !d.inPacket {
			d.protocolError("end marker outside packet", w)
			return
		}
		d.inPacket = false
		d.handlePacket(d.packet)
	case d.inPacket:
		d.packet = append(d.packet, w.Data)
	default:
		d.protocolError("data outside packet", w)
	}
}

func (d *Device) protocolError(reason string, w link.Word) {
	d.stats.ProtocolErrors++
	pkg.LogDebug(pkg.ComponentDevice, reason, "word", w.String())
}

func (d *Device) handlePacket(words []uint32) {
	if len(words) == 0 {
		d.protocolError("empty packet", link.Word{})
		return
	}

	if words[0] == link.Replicate(link.TypeTestPacket) {
		d.stats.TestPackets++
		payload := make([]link.Word, len(words)-1)
		for i, v := range words[1:] {
			payload[i] = link.Word{Data: v}
		}
		if err := d.enqueuePacket(link.TypeTestPacket, payload, false); err != nil {
			pkg.LogDebug(pkg.ComponentDevice, "test packet echo dropped", "error", err)
		}
		return
	}

	cmd := words
	if d.cfg.CheckCRC {
		n := len(words) - 1
		if n < 1 || link.Checksum(words[:n]) != words[n] {
			d.stats.CRCErrors++
			pkg.LogDebug(pkg.ComponentDevice, "command crc mismatch", "words", len(words))
			return
		}
		cmd = words[:n]
	}
	d.stats.Commands++

	body := make([]uint32, len(cmd))
	copy(body, cmd)
	d.pending = append(d.pending, event{kind: eventCommand, command: body})

	typ := uint8(link.TypeControlAckNoTag)
	if uint8(cmd[0]) == CommandWithTag {
		typ = link.TypeControlAckWithTag
	}
	reply := make([]link.Word, 0, len(cmd)-1)
	for _, v := range cmd[1:] {
		reply = append(reply, link.Word{Data: v})
	}
	if err := d.enqueuePacket(typ, reply, true); err != nil {
		pkg.LogDebug(pkg.ComponentDevice, "command acknowledgment dropped", "error", err)
	}
}

// enqueue queues words as one unit. Caller must hold mutex.
func (d *Device) enqueue(words ...link.Word) error {
	if len(d.queue)-d.head+len(words) > d.cfg.QueueDepth {
		d.stats.Dropped++
		return pkg.ErrBusy
	}
	if d.head > 0 && len(d.queue)+len(words) > cap(d.queue) {
		n := copy(d.queue, d.queue[d.head:])
		d.queue = d.queue[:n]
		d.head = 0
	}
	d.queue = append(d.queue, words...)
	return nil
}

// enqueuePacket frames and queues a device packet: start marker, type
// word, payload, an optional CRC over the type word and payload, and the
// end marker.
func (d *Device) enqueuePacket(typ uint8, payload []link.Word, withCRC bool) error {
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
	return d.enqueue(words...)
}

func (d *Device) dispatch(events []event) {
	if len(events) == 0 {
		return
	}

	d.cbMutex.RLock()
	onTrigger, onTriggerAck, onCommand := d.onTrigger, d.onTriggerAck, d.onCommand
	d.cbMutex.RUnlock()

	for _, ev := range events {
		switch ev.kind {
		case eventTrigger:
			if onTrigger != nil {
				onTrigger(ev.trigger)
			}
		case eventTriggerAck:
			if onTriggerAck != nil {
				onTriggerAck()
			}
		case eventCommand:
			if onCommand != nil {
				onCommand(ev.command)
			}
		}
	}
}

// SendTrigger sends a device trigger: the indicator, the delay and the
// link trigger number, one word each.
func (d *Device) SendTrigger(ev link.TriggerEvent) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if !d.running {
		return pkg.ErrNotRunning
	}
	return d.enqueue(link.ControlWord(link.TrigIndic28_2),
		link.DataWord(ev.Delay), link.DataWord(ev.LinkTrigger))
}

// SendStream sends a stream data packet.
func (d *Device) SendStream(payload []uint32) error {
	return d.send(link.TypeDataStream, payload, false, &d.stats.StreamPackets)
}

// SendEvent sends an event packet with a CRC trailer.
func (d *Device) SendEvent(payload []uint32) error {
	return d.send(link.TypeEvent, payload, true, nil)
}

func (d *Device) send(typ uint8, payload []uint32, withCRC bool, count *uint64) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty payload", pkg.ErrInvalidParameter)
	}
	words := make([]link.Word, len(payload))
	for i, v := range payload {
		words[i] = link.Word{Data: v}
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()
	if !d.running {
		return pkg.ErrNotRunning
	}
	if err := d.enqueuePacket(typ, words, withCRC); err != nil {
		return err
	}
	if count != nil {
		*count++
	}
	return nil
}

// Stats returns a snapshot of the device counters.
func (d *Device) Stats() Stats {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.stats
}

// Queued returns the number of words waiting to be sent.
func (d *Device) Queued() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.queue) - d.head
}

// SetOnTrigger sets the callback for host triggers.
func (d *Device) SetOnTrigger(fn func(link.TriggerEvent)) {
	d.cbMutex.Lock()
	d.onTrigger = fn
	d.cbMutex.Unlock()
}

// SetOnTriggerAck sets the callback for host trigger acknowledgments.
func (d *Device) SetOnTriggerAck(fn func()) {
	d.cbMutex.Lock()
	d.onTriggerAck = fn
	d.cbMutex.Unlock()
}

// SetOnCommand sets the callback for accepted host commands. The words
// exclude the CRC trailer when CheckCRC is set.
func (d *Device) SetOnCommand(fn func([]uint32)) {
	d.cbMutex.Lock()
	d.onCommand = fn
	d.cbMutex.Unlock()
}

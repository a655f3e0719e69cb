package host

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ardnew/softcxp/host/hal"
	"github.com/ardnew/softcxp/link"
	"github.com/ardnew/softcxp/pkg"
)

// Host runs the transmit and receive pipelines of one CoaXPress link
// against a HAL.
//
// Tick advances both pipelines by one step. When the configured tick
// interval is non-zero, Start launches a goroutine that runs batches of
// ticks on a ticker. Control strobes and Status may be called from any
// goroutine; command packets are read without taking the step lock.
type Host struct {
	hal hal.LinkHAL
	cfg Config

	tx *link.TX
	rx *link.RX

	// State
	running bool
	mutex   sync.Mutex
	ticks   uint64
	txErrs  uint64
	started time.Time

	// Context for cancellation
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	metrics *linkMetrics

	// Events raised during the current tick, dispatched after unlock
	pendingStream [][]link.Word
	pendingEvents []event

	// Callbacks
	cbMutex        sync.RWMutex
	onTrigger      func(link.TriggerEvent)
	onTriggerAck   func()
	onStreamPacket func([]link.Word)
	onHeartbeat    func(link.Heartbeat)
	onError        func(pkg.ErrorKind)
}

type eventKind uint8

const (
	eventTrigger eventKind = iota
	eventTriggerAck
	eventHeartbeat
	eventError
)

type event struct {
	kind      eventKind
	trigger   link.TriggerEvent
	heartbeat link.Heartbeat
	err       pkg.ErrorKind
}

// New creates a host for the given HAL.
func New(l hal.LinkHAL, cfg Config) (*Host, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: nil HAL", pkg.ErrInvalidParameter)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h := &Host{hal: l, cfg: cfg}

	tx, err := link.NewTX(link.TXConfig{
		Depth:           cfg.CommandDepth,
		WithTriggerAck:  cfg.TriggerAck,
		LinkTriggerMode: cfg.LinkTriggerMode,
		AppendCRC:       cfg.AppendCRC,
	})
	if err != nil {
		return nil, err
	}
	rx, err := link.NewRX(link.RXConfig{
		Depth:          cfg.CommandDepth,
		Slots:          cfg.CommandSlots,
		OnStreamPacket: h.queueStreamPacket,
	})
	if err != nil {
		return nil, err
	}

	h.tx, h.rx = tx, rx
	h.metrics = newLinkMetrics(cfg.Name)
	return h, nil
}

// Name returns the link name.
func (h *Host) Name() string { return h.cfg.Name }

// Config returns the host configuration.
func (h *Host) Config() Config { return h.cfg }

// Start initializes and starts the HAL, then starts the step loop unless
// the tick interval is zero.
func (h *Host) Start(ctx context.Context) error {
	h.mutex.Lock()
	if h.running {
		h.mutex.Unlock()
		return pkg.ErrAlreadyRunning
	}
	h.ctx, h.cancel = context.WithCancel(ctx)
	h.mutex.Unlock()

	if err := h.hal.Init(h.ctx); err != nil {
		h.cancel()
		return fmt.Errorf("init HAL: %w", err)
	}
	if err := h.hal.Start(); err != nil {
		h.cancel()
		return fmt.Errorf("start HAL: %w", err)
	}

	h.mutex.Lock()
	h.running = true
	h.started = time.Now()
	if h.cfg.TickInterval > 0 {
		h.done = make(chan struct{})
		go h.loop(h.ctx, h.done)
	}
	h.mutex.Unlock()

	pkg.LogInfo(pkg.ComponentHost, "host started",
		"link", h.cfg.Name, "interval", h.cfg.TickInterval, "batch", h.cfg.TicksPerBatch)
	return nil
}

// Stop stops the step loop and the HAL.
func (h *Host) Stop() error {
	h.mutex.Lock()
	if !h.running {
		h.mutex.Unlock()
		return nil
	}
	h.running = false
	if h.cancel != nil {
		h.cancel()
	}
	done := h.done
	h.done = nil
	h.mutex.Unlock()

	if done != nil {
		<-done
	}

	if err := h.hal.Stop(); err != nil {
		return fmt.Errorf("stop HAL: %w", err)
	}

	pkg.LogInfo(pkg.ComponentHost, "host stopped", "link", h.cfg.Name)
	return nil
}

// LinkReady reports whether the HAL has the link up.
func (h *Host) LinkReady() bool { return h.hal.LinkReady() }

// IsRunning returns true if the host is running.
func (h *Host) IsRunning() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.running
}

// loop runs batches of ticks until ctx is cancelled.
func (h *Host) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(h.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			h.TickN(h.cfg.TicksPerBatch)
			RecordBatch(h.cfg.Name, time.Since(start))
		}
	}
}

// TickN runs n ticks.
func (h *Host) TickN(n int) {
	for i := 0; i < n; i++ {
		h.Tick()
	}
}

// Tick advances both pipelines by one step. Callbacks for events raised
// during the step run after the step lock is released.
func (h *Host) Tick() {
	h.mutex.Lock()
	h.step()
	stream, events := h.pendingStream, h.pendingEvents
	h.pendingStream, h.pendingEvents = nil, nil
	h.mutex.Unlock()

	h.dispatch(stream, events)
}

// step runs one tick with the lock held.
func (h *Host) step() {
	h.ticks++

	ack := false
	if c, ok := h.tx.Out(); ok && h.hal.TxReady() {
		if err := h.hal.Transmit(c); err != nil {
			h.txErrs++
			h.metrics.txErrors.Inc()
			pkg.LogDebug(pkg.ComponentTX, "transmit failed", "link", h.cfg.Name, "error", err)
		} else {
			ack = true
			h.metrics.chars.Inc()
		}
	}
	h.tx.Step(ack)

	var w link.Word
	stb := false
	if h.rx.Ready() {
		w, stb = h.hal.Receive()
	}
	if stb {
		h.metrics.words.Inc()
	}
	h.rx.Step(w, stb)

	if p := h.rx.Pulses(); p.Any() {
		h.collect(p)
	}
	h.metrics.observe(h.tx.Stats(), h.rx.Stats())
}

// collect converts pulses into pending events.
func (h *Host) collect(p link.Pulses) {
	if p.Trigger {
		h.pendingEvents = append(h.pendingEvents, event{kind: eventTrigger, trigger: p.TriggerEvent})
	}
	if p.TriggerAck {
		h.pendingEvents = append(h.pendingEvents, event{kind: eventTriggerAck})
	}
	if p.Heartbeat {
		if hb, ok := h.rx.Heartbeat(); ok {
			h.pendingEvents = append(h.pendingEvents, event{kind: eventHeartbeat, heartbeat: hb})
		}
	}

	errs := [...]struct {
		raised bool
		kind   pkg.ErrorKind
	}{
		{p.DecodeError, pkg.ErrorKindDecode},
		{p.CRCError, pkg.ErrorKindCRC},
		{p.BufferError, pkg.ErrorKindBufferOverflow},
		{p.TestError, pkg.ErrorKindTestSequence},
	}
	for _, e := range errs {
		if e.raised {
			RecordLinkError(h.cfg.Name, e.kind)
			h.pendingEvents = append(h.pendingEvents, event{kind: eventError, err: e.kind})
		}
	}
}

// queueStreamPacket is the receive pipeline's stream sink. It runs with the
// step lock held.
func (h *Host) queueStreamPacket(words []link.Word) {
	h.pendingStream = append(h.pendingStream, words)
}

func (h *Host) dispatch(stream [][]link.Word, events []event) {
	if len(stream) == 0 && len(events) == 0 {
		return
	}

	h.cbMutex.RLock()
	onTrigger, onTriggerAck := h.onTrigger, h.onTriggerAck
	onStream, onHeartbeat, onError := h.onStreamPacket, h.onHeartbeat, h.onError
	h.cbMutex.RUnlock()

	for _, ev := range events {
		switch ev.kind {
		case eventTrigger:
			pkg.LogDebug(pkg.ComponentRX, "trigger received",
				"link", h.cfg.Name, "delay", ev.trigger.Delay, "linkTrigger", ev.trigger.LinkTrigger)
			if onTrigger != nil {
				onTrigger(ev.trigger)
			}
		case eventTriggerAck:
			if onTriggerAck != nil {
				onTriggerAck()
			}
		case eventHeartbeat:
			if onHeartbeat != nil {
				onHeartbeat(ev.heartbeat)
			}
		case eventError:
			if onError != nil {
				onError(ev.err)
			}
		}
	}
	if onStream != nil {
		for _, words := range stream {
			onStream(words)
		}
	}
}

// Trigger sends a trigger sequence with the given delay. It returns
// pkg.ErrBusy while a previous trigger is still being sent.
func (h *Host) Trigger(delay uint8) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if !h.running {
		return pkg.ErrNotRunning
	}
	if !h.tx.Trigger(delay) {
		return pkg.ErrBusy
	}
	return nil
}

// TriggerAck sends a trigger acknowledgment. Requests made while one is
// pending are merged.
func (h *Host) TriggerAck() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if !h.running {
		return pkg.ErrNotRunning
	}
	return h.tx.TriggerAck()
}

// SendCommand loads words into the writer buffer and starts transmission.
func (h *Host) SendCommand(words []uint32) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if !h.running {
		return pkg.ErrNotRunning
	}
	wr := h.tx.Writer()
	if err := wr.Load(words); err != nil {
		return fmt.Errorf("load command: %w", err)
	}
	if err := wr.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}
	return nil
}

// SendTestSequence starts a self-test packet.
func (h *Host) SendTestSequence() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if !h.running {
		return pkg.ErrNotRunning
	}
	return h.tx.Writer().StartTestSequence()
}

// SetLinkTriggerMode changes the indicator order of later triggers.
func (h *Host) SetLinkTriggerMode(on bool) {
	h.mutex.Lock()
	h.tx.SetLinkTriggerMode(on)
	h.mutex.Unlock()
}

// AckErrors clears the sticky command buffer error.
func (h *Host) AckErrors() {
	h.rx.Commands().AckError()
}

// ResetTestCounters clears the self-test counters.
func (h *Host) ResetTestCounters() {
	h.mutex.Lock()
	h.rx.ResetTestCounters()
	h.mutex.Unlock()
}

// SetReadPointer moves the command read cursor, releasing the slots
// before it.
func (h *Host) SetReadPointer(p int) error {
	return h.rx.Commands().SetReadPointer(p)
}

// ReadCommandPacket returns the next unread command packet and advances the
// read cursor. The first word is the packet type replicated on all lanes.
func (h *Host) ReadCommandPacket() ([]uint32, error) {
	return h.rx.Commands().Next()
}

// Status is a snapshot of the link state.
type Status struct {
	Name           string          `json:"name"`
	Running        bool            `json:"running"`
	LinkReady      bool            `json:"link_ready"`
	Speed          string          `json:"speed"`
	Uptime         string          `json:"uptime,omitempty"`
	Ticks          uint64          `json:"ticks"`
	TransmitErrors uint64          `json:"transmit_errors"`
	RxDrops        uint64          `json:"rx_drops"`
	WritePointer   int             `json:"write_pointer"`
	ReadPointer    int             `json:"read_pointer"`
	Unread         int             `json:"unread"`
	BufferError    bool            `json:"buffer_error"`
	Heartbeat      *link.Heartbeat `json:"heartbeat,omitempty"`
	TX             link.TXStats    `json:"tx"`
	RX             link.RXStats    `json:"rx"`
}

// Status returns a snapshot of the link state.
func (h *Host) Status() Status {
	hs := h.hal.Status()

	h.mutex.Lock()
	defer h.mutex.Unlock()

	cmd := h.rx.Commands()
	s := Status{
		Name:           h.cfg.Name,
		Running:        h.running,
		LinkReady:      h.hal.LinkReady(),
		Speed:          hs.Speed.String(),
		Ticks:          h.ticks,
		TransmitErrors: h.txErrs,
		RxDrops:        hs.RxDrops,
		WritePointer:   cmd.WritePointer(),
		ReadPointer:    cmd.ReadPointer(),
		Unread:         cmd.Unread(),
		BufferError:    cmd.Sticky(),
		TX:             h.tx.Stats(),
		RX:             h.rx.Stats(),
	}
	if h.running {
		s.Uptime = time.Since(h.started).Round(time.Millisecond).String()
	}
	if hb, ok := h.rx.Heartbeat(); ok {
		s.Heartbeat = &hb
	}
	return s
}

// SetOnTrigger sets the callback for triggers received from the device.
func (h *Host) SetOnTrigger(fn func(link.TriggerEvent)) {
	h.cbMutex.Lock()
	h.onTrigger = fn
	h.cbMutex.Unlock()
}

// SetOnTriggerAck sets the callback for received trigger acknowledgments.
func (h *Host) SetOnTriggerAck(fn func()) {
	h.cbMutex.Lock()
	h.onTriggerAck = fn
	h.cbMutex.Unlock()
}

// SetOnStreamPacket sets the callback for received stream packets. The
// words exclude the packet markers and the type word.
func (h *Host) SetOnStreamPacket(fn func([]link.Word)) {
	h.cbMutex.Lock()
	h.onStreamPacket = fn
	h.cbMutex.Unlock()
}

// SetOnHeartbeat sets the callback for received heartbeats.
func (h *Host) SetOnHeartbeat(fn func(link.Heartbeat)) {
	h.cbMutex.Lock()
	h.onHeartbeat = fn
	h.cbMutex.Unlock()
}

// SetOnError sets the callback for receive pipeline errors.
func (h *Host) SetOnError(fn func(pkg.ErrorKind)) {
	h.cbMutex.Lock()
	h.onError = fn
	h.cbMutex.Unlock()
}

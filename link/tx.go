package link

import (
	"fmt"

	"github.com/ardnew/softcxp/pkg"
)

// TXConfig selects the transmit pipeline options.
type TXConfig struct {
	// Depth is the writer buffer capacity in words.
	Depth int
	// WithTriggerAck enables the trigger acknowledgment stage.
	WithTriggerAck bool
	// LinkTriggerMode selects the link trigger indicator order.
	LinkTriggerMode bool
	// AppendCRC appends a CRC word to buffer transmissions.
	AppendCRC bool
}

// TX is the host transmit pipeline:
//
//	Writer -> PacketWrapper -> IdleInserter -> [TriggerAckInserter]
//	       -> Serializer -> TriggerInserter -> PHY
//
// Stages closer to the PHY preempt the ones before them, so trigger
// sequences take priority over acknowledgments, acknowledgments over idle,
// and idle over packet data.
type TX struct {
	writer  *Writer
	wrapper *PacketWrapper
	idle    *IdleInserter
	ack     *TriggerAckInserter
	ser     *Serializer
	trig    *TriggerInserter
}

// NewTX builds a transmit pipeline.
func NewTX(cfg TXConfig) (*TX, error) {
	if cfg.Depth < 1 {
		return nil, fmt.Errorf("%w: writer depth %d", pkg.ErrInvalidParameter, cfg.Depth)
	}

	t := &TX{writer: NewWriter(cfg.Depth)}
	t.writer.AppendCRC = cfg.AppendCRC
	t.wrapper = NewPacketWrapper(t.writer)
	t.idle = NewIdleInserter(t.wrapper)

	var words WordSource = t.idle
	if cfg.WithTriggerAck {
		t.ack = NewTriggerAckInserter(t.idle)
		words = t.ack
	}
	t.ser = NewSerializer(words)
	t.trig = NewTriggerInserter(t.ser)
	t.trig.LinkTriggerMode = cfg.LinkTriggerMode
	return t, nil
}

// Out presents the character for the PHY this tick.
func (t *TX) Out() (Char, bool) { return t.trig.Out() }

// Step ends the tick. ack reports whether the PHY took the character.
func (t *TX) Step(ack bool) { t.trig.Step(ack) }

// Writer returns the packet writer.
func (t *TX) Writer() *Writer { return t.writer }

// Trigger requests a trigger sequence. It returns false when a trigger is
// already pending.
func (t *TX) Trigger(delay uint8) bool { return t.trig.Strobe(delay) }

// TriggerAck requests a trigger acknowledgment. It returns
// pkg.ErrInvalidParameter when the pipeline was built without the stage.
func (t *TX) TriggerAck() error {
	if t.ack == nil {
		return fmt.Errorf("%w: trigger acknowledgment disabled", pkg.ErrInvalidParameter)
	}
	t.ack.Strobe()
	return nil
}

// SetLinkTriggerMode changes the indicator order of later triggers.
func (t *TX) SetLinkTriggerMode(on bool) { t.trig.LinkTriggerMode = on }

// TXStats holds the transmit counters.
type TXStats struct {
	Packets       uint64 `json:"packets"`
	TestPackets   uint64 `json:"test_packets"`
	Triggers      uint64 `json:"triggers"`
	TriggerAcks   uint64 `json:"trigger_acks"`
	WriterBusy    bool   `json:"writer_busy"`
	TriggerBusy   bool   `json:"trigger_busy"`
	InsertingIdle bool   `json:"inserting_idle"`
}

// Stats returns the transmit counters.
func (t *TX) Stats() TXStats {
	s := TXStats{
		Packets:       t.writer.Packets(),
		TestPackets:   t.writer.TestPackets(),
		Triggers:      t.trig.Sent(),
		WriterBusy:    t.writer.Busy(),
		TriggerBusy:   t.trig.Busy(),
		InsertingIdle: t.idle.Inserting(),
	}
	if t.ack != nil {
		s.TriggerAcks = t.ack.Sent()
	}
	return s
}

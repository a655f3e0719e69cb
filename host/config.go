package host

import (
	"fmt"
	"time"

	"github.com/ardnew/softcxp/pkg"
)

// Default configuration values.
const (
	DefaultName          = "cxp0"
	DefaultCommandDepth  = 256 // Words per command slot and writer buffer
	DefaultCommandSlots  = 4
	DefaultTickInterval  = time.Millisecond
	DefaultTicksPerBatch = 1024
)

// Config configures a Host.
type Config struct {
	// Name labels the link in logs and metrics.
	Name string

	// CommandDepth is the capacity in words of the writer buffer and of
	// each command slot.
	CommandDepth int

	// CommandSlots is the number of command slots. The ring holds
	// CommandSlots-1 unread packets.
	CommandSlots int

	// TriggerAck enables the trigger acknowledgment stage on transmit.
	TriggerAck bool

	// LinkTriggerMode selects the K28.4 K28.2 K28.2 trigger indicator.
	LinkTriggerMode bool

	// AppendCRC appends a CRC word to command transmissions.
	AppendCRC bool

	// TickInterval is the period of the step loop. Zero disables the loop
	// and the host advances only through Tick.
	TickInterval time.Duration

	// TicksPerBatch is the number of ticks run per loop period.
	TicksPerBatch int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Name:          DefaultName,
		CommandDepth:  DefaultCommandDepth,
		CommandSlots:  DefaultCommandSlots,
		TriggerAck:    true,
		AppendCRC:     true,
		TickInterval:  DefaultTickInterval,
		TicksPerBatch: DefaultTicksPerBatch,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.Name == "":
		return fmt.Errorf("%w: empty link name", pkg.ErrInvalidParameter)
	case c.CommandDepth < 1:
		return fmt.Errorf("%w: command depth %d", pkg.ErrInvalidParameter, c.CommandDepth)
	case c.CommandSlots < 2:
		return fmt.Errorf("%w: %d command slots, need at least 2",
			pkg.ErrInvalidParameter, c.CommandSlots)
	case c.TickInterval < 0:
		return fmt.Errorf("%w: tick interval %v", pkg.ErrInvalidParameter, c.TickInterval)
	case c.TickInterval > 0 && c.TicksPerBatch < 1:
		return fmt.Errorf("%w: %d ticks per batch", pkg.ErrInvalidParameter, c.TicksPerBatch)
	}
	return nil
}

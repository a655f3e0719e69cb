package fifo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/ardnew/softcxp/host/hal"
	"github.com/ardnew/softcxp/link"
	"github.com/ardnew/softcxp/pkg"
)

// Frame sizes on the byte stream.
const (
	CharSize = 2 // flags, data
	WordSize = 6 // flags, K mask, data little endian
)

// Frame flag bits.
const (
	flagK   = 0x01 // Character is a control character (chars only)
	flagEOP = 0x02 // End of packet
)

// Buffer sizes.
const (
	DefaultQueueDepth = 4096 // Receive and transmit queue capacity
	txBatch           = 256  // Characters per write
)

// FIFO file names (inside the link directory).
const (
	fifoHostToDevice = "host_to_device"
	fifoDeviceToHost = "device_to_host"
)

// Errors.
var (
	ErrFIFOCreate = errors.New("failed to create FIFO")
	ErrFIFOOpen   = errors.New("failed to open FIFO")
)

// EncodeChar writes c to buf, which must hold CharSize bytes.
func EncodeChar(buf []byte, c link.Char) {
	var flags byte
	if c.K {
		flags |= flagK
	}
	if c.EOP {
		flags |= flagEOP
	}
	buf[0] = flags
	buf[1] = c.Data
}

// DecodeChar reads a character from buf, which must hold CharSize bytes.
func DecodeChar(buf []byte) link.Char {
	return link.Char{
		Data: buf[1],
		K:    buf[0]&flagK != 0,
		EOP:  buf[0]&flagEOP != 0,
	}
}

// EncodeWord writes w to buf, which must hold WordSize bytes. The voted
// character fields are not carried.
func EncodeWord(buf []byte, w link.Word) {
	var flags byte
	if w.EOP {
		flags |= flagEOP
	}
	buf[0] = flags
	buf[1] = w.K
	buf[2] = byte(w.Data)
	buf[3] = byte(w.Data >> 8)
	buf[4] = byte(w.Data >> 16)
	buf[5] = byte(w.Data >> 24)
}

// DecodeWord reads a word from buf, which must hold WordSize bytes.
func DecodeWord(buf []byte) link.Word {
	return link.Word{
		Data: uint32(buf[2]) | uint32(buf[3])<<8 | uint32(buf[4])<<16 | uint32(buf[5])<<24,
		K:    buf[1] & 0x0F,
		EOP:  buf[0]&flagEOP != 0,
	}
}

// LinkHAL implements the hal.LinkHAL interface over a pair of byte streams.
// The host writes 2-byte character frames and reads 6-byte word frames.
//
// Two goroutines move data between the streams and bounded queues, so
// Transmit and Receive never block the step loop. When the transmit queue
// is full TxReady reports false. The goroutines start with the first Start
// and run until Close; Stop only takes the link down, and words that arrive
// while it is down are counted as drops.
type LinkHAL struct {
	dir string // Link directory, empty for stream HALs

	r       io.Reader
	w       io.Writer
	closers []io.Closer

	speed hal.Speed
	rx    chan link.Word
	tx    chan link.Char

	running atomic.Bool
	up      atomic.Bool
	broken  atomic.Bool // A stream failed; the link cannot come back up
	rxDrops atomic.Uint64

	ctx     context.Context // Lifetime of the stream goroutines, ended by Close
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup
	mu      sync.Mutex
}

// NewLinkHAL creates a FIFO-based HAL. Init creates the link directory and
// the named pipes host_to_device and device_to_host inside it.
func NewLinkHAL(dir string) *LinkHAL {
	ctx, cancel := context.WithCancel(context.Background())
	return &LinkHAL{
		dir:    dir,
		speed:  hal.SpeedCXP6,
		rx:     make(chan link.Word, DefaultQueueDepth),
		tx:     make(chan link.Char, DefaultQueueDepth),
		ctx:    ctx,
		cancel: cancel,
	}
}

// NewStreamHAL creates a HAL over an existing reader (device to host) and
// writer (host to device). Streams that implement io.Closer are closed by
// Close.
func NewStreamHAL(r io.Reader, w io.Writer) *LinkHAL {
	l := NewLinkHAL("")
	l.r, l.w = r, w
	for _, s := range []any{r, w} {
		if c, ok := s.(io.Closer); ok {
			l.closers = append(l.closers, c)
		}
	}
	return l
}

// SetSpeed sets the bit rate reported by Status.
func (l *LinkHAL) SetSpeed(s hal.Speed) { l.speed = s }

// Init creates and opens the named pipes, if the HAL has a link directory.
// Calling Init again after a successful Init keeps the open streams.
func (l *LinkHAL) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ctx.Err() != nil {
		return pkg.ErrClosed
	}
	if l.r != nil && l.w != nil {
		if l.dir == "" {
			pkg.LogInfo(pkg.ComponentHAL, "stream HAL initialized")
		}
		return nil
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrFIFOCreate, err)
	}
	for _, name := range []string{fifoHostToDevice, fifoDeviceToHost} {
		if err := mkfifo(filepath.Join(l.dir, name)); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrFIFOCreate, name, err)
		}
	}

	// O_RDWR keeps the open from blocking until the device side appears.
	w, err := os.OpenFile(filepath.Join(l.dir, fifoHostToDevice), os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFIFOOpen, err)
	}
	r, err := os.OpenFile(filepath.Join(l.dir, fifoDeviceToHost), os.O_RDWR, 0)
	if err != nil {
		w.Close()
		return fmt.Errorf("%w: %v", ErrFIFOOpen, err)
	}
	l.r, l.w = r, w
	l.closers = []io.Closer{r, w}

	pkg.LogInfo(pkg.ComponentHAL, "FIFO HAL initialized", "dir", l.dir)
	return nil
}

// Start brings the link up, starting the reader and writer goroutines on
// first use.
func (l *LinkHAL) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.r == nil || l.w == nil {
		return pkg.ErrNotRunning
	}
	if l.ctx.Err() != nil {
		return pkg.ErrClosed
	}
	if l.running.Load() {
		return pkg.ErrAlreadyRunning
	}
	if !l.started {
		l.started = true
		l.wg.Add(2)
		go l.readWords(l.ctx)
		go l.writeChars(l.ctx)
	}
	l.running.Store(true)
	l.up.Store(!l.broken.Load())

	pkg.LogInfo(pkg.ComponentHAL, "FIFO HAL started")
	return nil
}

// Stop takes the link down. The streams stay open for a later Start.
func (l *LinkHAL) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.running.Store(false)
	l.up.Store(false)

	pkg.LogInfo(pkg.ComponentHAL, "FIFO HAL stopped")
	return nil
}

// Close stops the link, closes the streams and waits for the goroutines.
func (l *LinkHAL) Close() error {
	if err := l.Stop(); err != nil {
		return err
	}

	l.mu.Lock()
	l.cancel()
	var errs []error
	for _, c := range l.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	l.closers = nil
	l.mu.Unlock()

	l.wg.Wait()
	return errors.Join(errs...)
}

// LinkReady reports whether both streams are healthy.
func (l *LinkHAL) LinkReady() bool {
	return l.running.Load() && l.up.Load()
}

// TxReady reports whether the transmit queue has room.
func (l *LinkHAL) TxReady() bool {
	return l.LinkReady() && len(l.tx) < cap(l.tx)
}

// Status returns a snapshot of the link state.
func (l *LinkHAL) Status() hal.Status {
	return hal.Status{
		Up:       l.LinkReady(),
		TxReady:  l.TxReady(),
		Speed:    l.speed,
		RxQueued: len(l.rx),
		RxDrops:  l.rxDrops.Load(),
	}
}

// Transmit queues one character for the writer goroutine.
func (l *LinkHAL) Transmit(c link.Char) error {
	if !l.LinkReady() {
		return pkg.ErrLinkDown
	}
	select {
	case l.tx <- c:
		return nil
	default:
		return pkg.ErrBusy
	}
}

// Receive returns the next word delivered by the reader goroutine.
func (l *LinkHAL) Receive() (link.Word, bool) {
	select {
	case w := <-l.rx:
		return w, true
	default:
		return link.Word{}, false
	}
}

// fail marks the link broken after a stream error.
func (l *LinkHAL) fail(ctx context.Context, msg string, err error) {
	if ctx.Err() != nil {
		return
	}
	pkg.LogWarn(pkg.ComponentHAL, msg, "error", err)
	l.broken.Store(true)
	l.up.Store(false)
}

// readWords decodes word frames from the device stream.
func (l *LinkHAL) readWords(ctx context.Context) {
	defer l.wg.Done()

	var buf [WordSize]byte
	for {
		if _, err := io.ReadFull(l.r, buf[:]); err != nil {
			l.fail(ctx, "device stream read failed", err)
			return
		}

		w := DecodeWord(buf[:])
		if !l.running.Load() {
			l.rxDrops.Add(1)
			continue
		}
		select {
		case l.rx <- w:
		case <-ctx.Done():
			return
		default:
			l.rxDrops.Add(1)
		}
	}
}

// writeChars encodes queued characters onto the host stream in batches.
func (l *LinkHAL) writeChars(ctx context.Context) {
	defer l.wg.Done()

	buf := make([]byte, 0, txBatch*CharSize)
	var frame [CharSize]byte
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-l.tx:
			buf = buf[:0]
			EncodeChar(frame[:], c)
			buf = append(buf, frame[:]...)
		drain:
			for len(buf) < cap(buf) {
				select {
				case c := <-l.tx:
					EncodeChar(frame[:], c)
					buf = append(buf, frame[:]...)
				default:
					break drain
				}
			}
			if _, err := l.w.Write(buf); err != nil {
				l.fail(ctx, "host stream write failed", err)
				return
			}
		}
	}
}

// Ensure LinkHAL implements hal.LinkHAL.
var _ hal.LinkHAL = (*LinkHAL)(nil)

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

	"github.com/ardnew/softcxp/device/hal"
	hostfifo "github.com/ardnew/softcxp/host/hal/fifo"
	"github.com/ardnew/softcxp/link"
	"github.com/ardnew/softcxp/pkg"
)

// DefaultQueueDepth is the receive and transmit queue capacity.
const DefaultQueueDepth = 4096

// wordBatch is the number of words encoded per write.
const wordBatch = 128

// FIFO file names (inside the link directory, created by the host).
const (
	fifoHostToDevice = "host_to_device"
	fifoDeviceToHost = "device_to_host"
)

// ErrFIFOOpen indicates the link pipes could not be opened.
var ErrFIFOOpen = errors.New("failed to open FIFO")

// HAL implements hal.DeviceHAL over a pair of byte streams. It reads the
// host's 2-byte character frames and writes 6-byte word frames, the framing
// of the host FIFO HAL. The stream goroutines live from the first Start
// until Close; characters that arrive while the link is stopped are dropped.
type HAL struct {
	dir string // Link directory, empty for stream HALs

	r       io.Reader
	w       io.Writer
	closers []io.Closer

	rx chan link.Char
	tx chan link.Word

	running atomic.Bool
	up      atomic.Bool
	broken  atomic.Bool
	rxDrops atomic.Uint64

	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup
	mu      sync.Mutex
}

// New creates a device HAL for the link directory dir. The host creates
// the named pipes; Init opens them.
func New(dir string) *HAL {
	ctx, cancel := context.WithCancel(context.Background())
	return &HAL{
		dir:    dir,
		rx:     make(chan link.Char, DefaultQueueDepth),
		tx:     make(chan link.Word, DefaultQueueDepth),
		ctx:    ctx,
		cancel: cancel,
	}
}

// NewStream creates a device HAL over an existing reader (host to device)
// and writer (device to host). Streams that implement io.Closer are closed
// by Close.
func NewStream(r io.Reader, w io.Writer) *HAL {
	h := New("")
	h.r, h.w = r, w
	for _, s := range []any{r, w} {
		if c, ok := s.(io.Closer); ok {
			h.closers = append(h.closers, c)
		}
	}
	return h
}

// Init opens the named pipes, if the HAL has a link directory and they are
// not open yet.
func (h *HAL) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctx.Err() != nil {
		return pkg.ErrClosed
	}
	if h.r != nil && h.w != nil {
		return nil
	}

	open := func(name string) (*os.File, error) {
		path := filepath.Join(h.dir, name)
		fi, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFIFOOpen, err)
		}
		if fi.Mode()&os.ModeNamedPipe == 0 {
			return nil, fmt.Errorf("%w: %s is not a named pipe", ErrFIFOOpen, path)
		}
		f, err := os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFIFOOpen, err)
		}
		return f, nil
	}

	r, err := open(fifoHostToDevice)
	if err != nil {
		return err
	}
	w, err := open(fifoDeviceToHost)
	if err != nil {
		r.Close()
		return err
	}
	h.r, h.w = r, w
	h.closers = []io.Closer{r, w}

	pkg.LogInfo(pkg.ComponentHAL, "device FIFO HAL initialized", "dir", h.dir)
	return nil
}

// Start brings the link up.
func (h *HAL) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.r == nil || h.w == nil {
		return pkg.ErrNotRunning
	}
	if h.ctx.Err() != nil {
		return pkg.ErrClosed
	}
	if h.running.Load() {
		return pkg.ErrAlreadyRunning
	}
	if !h.started {
		h.started = true
		h.wg.Add(2)
		go h.readChars(h.ctx)
		go h.writeWords(h.ctx)
	}
	h.running.Store(true)
	h.up.Store(!h.broken.Load())
	return nil
}

// Stop takes the link down and keeps the streams open.
func (h *HAL) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.running.Store(false)
	h.up.Store(false)
	return nil
}

// Close stops the link, closes the streams and waits for the goroutines.
func (h *HAL) Close() error {
	if err := h.Stop(); err != nil {
		return err
	}

	h.mu.Lock()
	h.cancel()
	var errs []error
	for _, c := range h.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	h.closers = nil
	h.mu.Unlock()

	h.wg.Wait()
	return errors.Join(errs...)
}

// LinkReady reports whether both streams are healthy.
func (h *HAL) LinkReady() bool {
	return h.running.Load() && h.up.Load()
}

// Drops returns the number of host characters dropped on a full receive
// queue.
func (h *HAL) Drops() uint64 { return h.rxDrops.Load() }

// Receive returns the next host character.
func (h *HAL) Receive() (link.Char, bool) {
	select {
	case c := <-h.rx:
		return c, true
	default:
		return link.Char{}, false
	}
}

// Transmit queues one word for the writer goroutine.
func (h *HAL) Transmit(w link.Word) error {
	if !h.LinkReady() {
		return pkg.ErrLinkDown
	}
	select {
	case h.tx <- w:
		return nil
	default:
		return pkg.ErrBusy
	}
}

func (h *HAL) fail(ctx context.Context, msg string, err error) {
	if ctx.Err() != nil {
		return
	}
	pkg.LogWarn(pkg.ComponentHAL, msg, "error", err)
	h.broken.Store(true)
	h.up.Store(false)
}

// readChars decodes character frames from the host stream.
func (h *HAL) readChars(ctx context.Context) {
	defer h.wg.Done()

	var buf [hostfifo.CharSize]byte
	for {
		if _, err := io.ReadFull(h.r, buf[:]); err != nil {
			h.fail(ctx, "host stream read failed", err)
			return
		}

		c := hostfifo.DecodeChar(buf[:])
		if !h.running.Load() {
			h.rxDrops.Add(1)
			continue
		}
		select {
		case h.rx <- c:
		case <-ctx.Done():
			return
		default:
			h.rxDrops.Add(1)
		}
	}
}

// writeWords encodes queued words onto the device stream in batches.
func (h *HAL) writeWords(ctx context.Context) {
	defer h.wg.Done()

	buf := make([]byte, 0, wordBatch*hostfifo.WordSize)
	var frame [hostfifo.WordSize]byte
	for {
		select {
		case <-ctx.Done():
			return
		case w := <-h.tx:
			buf = buf[:0]
			hostfifo.EncodeWord(frame[:], w)
			buf = append(buf, frame[:]...)
		drain:
			for len(buf) < cap(buf) {
				select {
				case w := <-h.tx:
					hostfifo.EncodeWord(frame[:], w)
					buf = append(buf, frame[:]...)
				default:
					break drain
				}
			}
			if _, err := h.w.Write(buf); err != nil {
				h.fail(ctx, "device stream write failed", err)
				return
			}
		}
	}
}

// Ensure HAL implements hal.DeviceHAL.
var _ hal.DeviceHAL = (*HAL)(nil)

package fifo

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/ardnew/softcxp/link"
	"github.com/ardnew/softcxp/pkg"
)

func TestCharFrame(t *testing.T) {
	tests := []struct {
		c    link.Char
		want [CharSize]byte
	}{
		{link.Char{Data: 0x5A}, [CharSize]byte{0x00, 0x5A}},
		{link.Char{Data: 0xFB, K: true}, [CharSize]byte{0x01, 0xFB}},
		{link.Char{Data: 0xFD, K: true, EOP: true}, [CharSize]byte{0x03, 0xFD}},
	}

	for _, tt := range tests {
		var buf [CharSize]byte
		EncodeChar(buf[:], tt.c)
		if buf != tt.want {
			t.Errorf("EncodeChar(%+v) = % x, want % x", tt.c, buf, tt.want)
		}
		if got := DecodeChar(buf[:]); got != tt.c {
			t.Errorf("DecodeChar(% x) = %+v, want %+v", buf, got, tt.c)
		}
	}
}

func TestWordFrame(t *testing.T) {
	w := link.Word{Data: 0x44332211, K: 0x5, EOP: true}

	var buf [WordSize]byte
	EncodeWord(buf[:], w)
	want := [WordSize]byte{0x02, 0x05, 0x11, 0x22, 0x33, 0x44}
	if buf != want {
		t.Fatalf("EncodeWord() = % x, want % x", buf, want)
	}
	if got := DecodeWord(buf[:]); got != w {
		t.Errorf("DecodeWord() = %s, want %s", got, w)
	}
}

// streamPair returns a started stream HAL and the device ends of its
// streams.
func streamPair(t *testing.T) (l *LinkHAL, devR *io.PipeReader, devW *io.PipeWriter) {
	t.Helper()
	hostR, devW := io.Pipe()
	devR, hostW := io.Pipe()

	l = NewStreamHAL(hostR, hostW)
	if err := l.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := l.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		devR.Close()
		devW.Close()
		l.Close()
	})
	return l, devR, devW
}

func TestStreamReceive(t *testing.T) {
	l, _, devW := streamPair(t)

	words := []link.Word{link.IdleWord, link.ControlWord(link.PakStart), {Data: 7}}
	go func() {
		var buf [WordSize]byte
		for _, w := range words {
			EncodeWord(buf[:], w)
			if _, err := devW.Write(buf[:]); err != nil {
				return
			}
		}
	}()

	deadline := time.Now().Add(5 * time.Second)
	var got []link.Word
	for len(got) < len(words) && time.Now().Before(deadline) {
		if w, ok := l.Receive(); ok {
			got = append(got, w)
			continue
		}
		time.Sleep(time.Millisecond)
	}

	if len(got) != len(words) {
		t.Fatalf("received %d words, want %d", len(got), len(words))
	}
	for i := range words {
		if got[i] != words[i] {
			t.Errorf("word %d = %s, want %s", i, got[i], words[i])
		}
	}
}

// sendWords writes word frames to the device end of the stream.
func sendWords(w io.Writer, words []link.Word) {
	var buf [WordSize]byte
	for _, wd := range words {
		EncodeWord(buf[:], wd)
		if _, err := w.Write(buf[:]); err != nil {
			return
		}
	}
}

// receiveWords polls l until n words arrive or the deadline passes.
func receiveWords(l *LinkHAL, n int) []link.Word {
	deadline := time.Now().Add(5 * time.Second)
	var got []link.Word
	for len(got) < n && time.Now().Before(deadline) {
		if w, ok := l.Receive(); ok {
			got = append(got, w)
			continue
		}
		time.Sleep(time.Millisecond)
	}
	return got
}

func TestStreamRestart(t *testing.T) {
	l, devR, devW := streamPair(t)

	for i := range 3 {
		if err := l.Stop(); err != nil {
			t.Fatalf("Stop() #%d error = %v", i, err)
		}
		if l.LinkReady() {
			t.Fatalf("LinkReady() after Stop #%d", i)
		}
		if err := l.Start(); err != nil {
			t.Fatalf("Start() #%d error = %v", i, err)
		}
	}

	words := make([]link.Word, 50)
	for i := range words {
		words[i] = link.Word{Data: uint32(i) + 1}
	}
	go sendWords(devW, words)

	got := receiveWords(l, len(words))
	if len(got) != len(words) {
		t.Fatalf("received %d words after restart, want %d (drops %d)",
			len(got), len(words), l.Status().RxDrops)
	}
	for i := range words {
		if got[i] != words[i] {
			t.Errorf("word %d = %s, want %s", i, got[i], words[i])
		}
	}

	if err := l.Transmit(link.Char{Data: 0x3C}); err != nil {
		t.Fatalf("Transmit() after restart error = %v", err)
	}
	var buf [CharSize]byte
	if _, err := io.ReadFull(devR, buf[:]); err != nil {
		t.Fatalf("device read error = %v", err)
	}
	if c := DecodeChar(buf[:]); c.Data != 0x3C {
		t.Errorf("char after restart = %+v, want data 0x3c", c)
	}
}

func TestStreamStoppedDropsWords(t *testing.T) {
	l, _, devW := streamPair(t)
	if err := l.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	sendWords(devW, []link.Word{{Data: 1}, {Data: 2}})

	deadline := time.Now().Add(5 * time.Second)
	for l.Status().RxDrops < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if st := l.Status(); st.RxDrops != 2 || st.RxQueued != 0 {
		t.Errorf("Status() = %+v, want 2 drops and empty queue", st)
	}
	if w, ok := l.Receive(); ok {
		t.Errorf("Receive() while stopped = %s", w)
	}
}

func TestStartAfterClose(t *testing.T) {
	l := NewStreamHAL(strings.NewReader(""), io.Discard)
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := l.Start(); !errors.Is(err, pkg.ErrClosed) {
		t.Errorf("Start() after Close error = %v, want ErrClosed", err)
	}
	if err := l.Init(context.Background()); !errors.Is(err, pkg.ErrClosed) {
		t.Errorf("Init() after Close error = %v, want ErrClosed", err)
	}
}

func TestStreamTransmit(t *testing.T) {
	l, devR, _ := streamPair(t)

	chars := []link.Char{
		{Data: 0xBC, K: true},
		{Data: 0x01},
		{Data: 0xFD, K: true, EOP: true},
	}
	for _, c := range chars {
		if err := l.Transmit(c); err != nil {
			t.Fatalf("Transmit() error = %v", err)
		}
	}

	buf := make([]byte, len(chars)*CharSize)
	done := make(chan error, 1)
	go func() {
		_, err := io.ReadFull(devR, buf)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("device read error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for characters")
	}

	for i, want := range chars {
		if got := DecodeChar(buf[i*CharSize:]); got != want {
			t.Errorf("char %d = %+v, want %+v", i, got, want)
		}
	}
}

func TestStreamLinkDown(t *testing.T) {
	l := NewStreamHAL(strings.NewReader(""), io.Discard)

	if l.LinkReady() {
		t.Error("LinkReady() before Start")
	}
	if err := l.Transmit(link.Char{}); !errors.Is(err, pkg.ErrLinkDown) {
		t.Errorf("Transmit() before Start error = %v, want ErrLinkDown", err)
	}
}

func TestStartWithoutStreams(t *testing.T) {
	l := NewLinkHAL(filepath.Join(t.TempDir(), "never-initialized"))
	if err := l.Start(); !errors.Is(err, pkg.ErrNotRunning) {
		t.Errorf("Start() before Init error = %v, want ErrNotRunning", err)
	}
}

func TestInitCreatesFIFOs(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("named pipes not supported")
	}

	dir := filepath.Join(t.TempDir(), "link")
	l := NewLinkHAL(dir)
	if err := l.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer l.Close()

	for _, name := range []string{fifoHostToDevice, fifoDeviceToHost} {
		fi, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("Stat(%s) error = %v", name, err)
		}
		if fi.Mode()&os.ModeNamedPipe == 0 {
			t.Errorf("%s mode = %v, want named pipe", name, fi.Mode())
		}
	}

	// Init again keeps the open descriptors.
	r, w := l.r, l.w
	if err := l.Init(context.Background()); err != nil {
		t.Fatalf("second Init() error = %v", err)
	}
	if l.r != r || l.w != w || len(l.closers) != 2 {
		t.Error("second Init() reopened the pipes")
	}

	// A second HAL reuses the existing pipes.
	l2 := NewLinkHAL(dir)
	if err := l2.Init(context.Background()); err != nil {
		t.Errorf("Init() on existing FIFOs error = %v", err)
	}
	l2.Close()
}

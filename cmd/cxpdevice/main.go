// Command cxpdevice runs an emulated CoaXPress device on the far end of a
// cxphost FIFO link.
//
// The device acknowledges host triggers and commands, echoes self-test
// packets and sends periodic heartbeats. With -stream it also sends a
// stream packet of counter words on every interval.
//
// Usage:
//
//	cxpdevice [options] /path/to/link-dir
//
// The link directory is the fifo_dir of the host; start the host first so
// the named pipes exist.
//
// Options:
//
//	-v                   Enable verbose (debug) logging
//	-json                Use JSON log format
//	-host-id value       Host id reported in heartbeats
//	-heartbeat ticks     Ticks between heartbeats, 0 disables (default: 100000)
//	-no-crc              Accept commands without a CRC trailer
//	-stream duration     Interval between stream packets, 0 disables
//	-stream-words n      Payload words per stream packet (default: 64)
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardnew/softcxp/device"
	"github.com/ardnew/softcxp/device/hal/fifo"
	"github.com/ardnew/softcxp/link"
	"github.com/ardnew/softcxp/pkg"
)

// component identifies this executable for structured logging.
const component = pkg.ComponentDevice

func main() {
	verbose := flag.Bool("v", false, "enable verbose (debug) logging")
	jsonLog := flag.Bool("json", false, "use JSON log format")
	hostID := flag.Uint("host-id", 0x43585030, "host id reported in heartbeats")
	heartbeat := flag.Uint64("heartbeat", 100000, "ticks between heartbeats, 0 disables")
	noCRC := flag.Bool("no-crc", false, "accept commands without a CRC trailer")
	streamEvery := flag.Duration("stream", 0, "interval between stream packets, 0 disables")
	streamWords := flag.Int("stream-words", 64, "payload words per stream packet")
	flag.Parse()

	if flag.NArg() < 1 {
		pkg.LogError(component, "missing link directory argument",
			"usage", "cxpdevice [options] <link-dir>")
		os.Exit(1)
	}
	linkDir := flag.Arg(0)

	if *verbose {
		pkg.SetLogLevel(slog.LevelDebug)
	}
	if *jsonLog {
		pkg.SetLogFormat(pkg.LogFormatJSON)
	}

	cfg := device.DefaultConfig()
	cfg.HostID = uint32(*hostID)
	cfg.HeartbeatInterval = *heartbeat
	cfg.CheckCRC = !*noCRC

	port := fifo.New(linkDir)
	defer port.Close()

	dev, err := device.New(port, cfg)
	if err != nil {
		pkg.LogError(component, "failed to create device", "error", err)
		os.Exit(1)
	}
	dev.SetOnTrigger(func(ev link.TriggerEvent) {
		pkg.LogInfo(component, "host trigger", "delay", ev.Delay)
	})
	dev.SetOnCommand(func(words []uint32) {
		pkg.LogInfo(component, "host command", "words", len(words))
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pkg.LogInfo(component, "starting device", "linkDir", linkDir, "hostID", cfg.HostID)
	if err := dev.Start(ctx); err != nil {
		pkg.LogError(component, "failed to start device", "error", err)
		os.Exit(1)
	}

	var tick <-chan time.Time
	if *streamEvery > 0 {
		ticker := time.NewTicker(*streamEvery)
		defer ticker.Stop()
		tick = ticker.C
	}

	payload := make([]uint32, max(*streamWords, 1))
	var seq uint32
	for {
		select {
		case <-ctx.Done():
			pkg.LogInfo(component, "shutting down", "stats", dev.Stats())
			if err := dev.Stop(); err != nil {
				pkg.LogWarn(component, "stop failed", "error", err)
			}
			return
		case <-tick:
			for i := range payload {
				payload[i] = seq
				seq++
			}
			if err := dev.SendStream(payload); err != nil {
				pkg.LogDebug(component, "stream packet dropped", "error", err)
			}
		}
	}
}

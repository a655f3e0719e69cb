// Command cxphost runs a CoaXPress host link engine with an HTTP control
// surface.
//
// Usage:
//
//	cxphost [options]
//
// Options:
//
//	-config path   TOML configuration file (see cxphost.example.toml)
//	-v             Enable verbose (debug) logging
//	-json          Use JSON log format
//	-cpuprofile    Write a CPU profile (binaries built with -tags profile)
//	-memprofile    Write a heap profile on exit (binaries built with -tags profile)
//
// With the loopback backend the host talks to an in-memory device that
// echoes its traffic. With the fifo backend it talks to a device emulator
// through the named pipes host_to_device and device_to_host in fifo_dir.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardnew/softcxp/host"
	"github.com/ardnew/softcxp/host/api"
	"github.com/ardnew/softcxp/host/hal"
	"github.com/ardnew/softcxp/host/hal/fifo"
	"github.com/ardnew/softcxp/host/hal/loopback"
	"github.com/ardnew/softcxp/link"
	"github.com/ardnew/softcxp/pkg"
	"github.com/ardnew/softcxp/pkg/prof"
	"github.com/rs/zerolog"
)

// component identifies this executable for structured logging.
const component = pkg.ComponentHost

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "TOML configuration file")
	verbose := flag.Bool("v", false, "enable verbose (debug) logging")
	jsonLog := flag.Bool("json", false, "use JSON log format")
	cpuProfile := flag.String("cpuprofile", "", "write a CPU profile to `file`")
	memProfile := flag.String("memprofile", "", "write a heap profile to `file` on exit")
	flag.Parse()

	cfg := defaultAppConfig()
	if *configPath != "" {
		var err error
		if cfg, err = loadConfig(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "cxphost: %v\n", err)
			os.Exit(1)
		}
	}
	if *verbose {
		cfg.LogLevel = slog.LevelDebug
	}
	if *jsonLog {
		cfg.LogFormat = pkg.LogFormatJSON
	}

	if *cpuProfile != "" {
		if err := prof.StartCPU(*cpuProfile); err != nil {
			fmt.Fprintf(os.Stderr, "cxphost: start CPU profile: %v\n", err)
			os.Exit(1)
		}
	}

	err := run(cfg)

	if perr := prof.StopCPU(); perr != nil {
		pkg.LogWarn(component, "failed to write CPU profile", "error", perr)
	}
	if *memProfile != "" {
		if perr := prof.Write(prof.ProfileHeap, *memProfile); perr != nil {
			pkg.LogWarn(component, "failed to write heap profile", "error", perr)
		}
	}

	if err != nil {
		pkg.LogError(component, "cxphost failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg appConfig) error {
	pkg.SetLogLevel(cfg.LogLevel)
	pkg.SetLogFormat(cfg.LogFormat)
	logger := apiLogger(cfg)

	l, err := newHAL(cfg)
	if err != nil {
		return err
	}
	defer l.Close()

	h, err := host.New(l, cfg.Host)
	if err != nil {
		return err
	}
	rxLog := pkg.Logger(pkg.ComponentRX, h.Name())
	h.SetOnError(func(k pkg.ErrorKind) {
		rxLog.Debug("link error", "kind", k.String())
	})
	h.SetOnTrigger(func(ev link.TriggerEvent) {
		rxLog.Info("device trigger", "delay", ev.Delay, "linkTrigger", ev.LinkTrigger)
	})
	h.SetOnHeartbeat(func(hb link.Heartbeat) {
		rxLog.Debug("heartbeat", "hostID", hb.HostID, "timestamp", hb.Timestamp)
	})

	// Set up context for cancellation
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pkg.LogInfo(component, "starting link", "link", cfg.Host.Name, "hal", cfg.HAL)
	if err := h.Start(ctx); err != nil {
		return fmt.Errorf("start host: %w", err)
	}
	defer h.Stop()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.New(h, api.Options{CORSOrigins: cfg.CORSOrigins, Logger: logger}).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Listen).Msg("api_listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		pkg.LogInfo(component, "shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve api: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newHAL builds the configured link backend.
func newHAL(cfg appConfig) (hal.LinkHAL, error) {
	switch cfg.HAL {
	case halLoopback:
		l := loopback.New()
		l.Speed = cfg.Speed
		l.EchoTriggers = cfg.EchoTriggers
		return l, nil
	case halFIFO:
		l := fifo.NewLinkHAL(cfg.FIFODir)
		l.SetSpeed(cfg.Speed)
		return l, nil
	default:
		return nil, fmt.Errorf("%w: unknown hal %q", pkg.ErrInvalidParameter, cfg.HAL)
	}
}

// apiLogger returns the request logger of the control API. It follows the
// level and format chosen for the link logs.
func apiLogger(cfg appConfig) zerolog.Logger {
	var w io.Writer = os.Stderr
	if cfg.LogFormat != pkg.LogFormatJSON {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).
		Level(zerologLevel(cfg.LogLevel)).
		With().Timestamp().Str("app", "cxphost").
		Logger()
}

func zerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level <= slog.LevelDebug:
		return zerolog.DebugLevel
	case level <= slog.LevelInfo:
		return zerolog.InfoLevel
	case level <= slog.LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

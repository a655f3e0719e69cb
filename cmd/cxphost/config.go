package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ardnew/softcxp/host"
	"github.com/ardnew/softcxp/host/hal"
	"github.com/ardnew/softcxp/pkg"
)

// HAL backends.
const (
	halLoopback = "loopback"
	halFIFO     = "fifo"
)

type appConfig struct {
	Host host.Config

	HAL          string
	FIFODir      string
	Speed        hal.Speed
	EchoTriggers bool

	Listen      string
	CORSOrigins []string

	LogLevel  slog.Level
	LogFormat pkg.LogFormat
}

func defaultAppConfig() appConfig {
	return appConfig{
		Host:      host.DefaultConfig(),
		HAL:       halLoopback,
		FIFODir:   "/tmp/cxp-link",
		Speed:     hal.SpeedCXP6,
		Listen:    "127.0.0.1:9400",
		LogLevel:  slog.LevelWarn,
		LogFormat: pkg.LogFormatText,
	}
}

type fileConfig struct {
	Name            string   `toml:"name"`
	HAL             string   `toml:"hal"`
	FIFODir         string   `toml:"fifo_dir"`
	Speed           string   `toml:"speed"`
	EchoTriggers    bool     `toml:"echo_triggers"`
	Listen          string   `toml:"listen"`
	CORSOrigins     []string `toml:"cors_origins"`
	LogLevel        string   `toml:"log_level"`
	LogFormat       string   `toml:"log_format"`
	CommandDepth    int      `toml:"command_depth"`
	CommandSlots    int      `toml:"command_slots"`
	TriggerAck      bool     `toml:"trigger_ack"`
	LinkTriggerMode bool     `toml:"link_trigger_mode"`
	AppendCRC       bool     `toml:"append_crc"`
	TickInterval    string   `toml:"tick_interval"`
	TicksPerBatch   int      `toml:"ticks_per_batch"`
}

// loadConfig reads path and applies the keys it defines on top of the
// defaults.
func loadConfig(path string) (appConfig, error) {
	cfg := defaultAppConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return appConfig{}, fmt.Errorf("load cxphost config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		pkg.LogWarn(pkg.ComponentHost, "unknown config keys", "keys", fmt.Sprint(undecoded))
	}

	if meta.IsDefined("name") {
		if name := strings.TrimSpace(raw.Name); name != "" {
			cfg.Host.Name = name
		}
	}

	if meta.IsDefined("hal") {
		switch v := strings.ToLower(strings.TrimSpace(raw.HAL)); v {
		case halLoopback, halFIFO:
			cfg.HAL = v
		default:
			return appConfig{}, fmt.Errorf("parse hal: unknown backend %q", raw.HAL)
		}
	}

	if meta.IsDefined("fifo_dir") {
		cfg.FIFODir = strings.TrimSpace(raw.FIFODir)
	}

	if meta.IsDefined("speed") {
		sp := hal.ParseSpeed(raw.Speed)
		if sp == hal.SpeedUnknown {
			return appConfig{}, fmt.Errorf("parse speed: unknown rate %q", raw.Speed)
		}
		cfg.Speed = sp
	}

	if meta.IsDefined("echo_triggers") {
		cfg.EchoTriggers = raw.EchoTriggers
	}

	if meta.IsDefined("listen") {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}

	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = raw.CORSOrigins
	}

	if meta.IsDefined("log_level") {
		level, ok := pkg.ParseLogLevel(raw.LogLevel)
		if !ok {
			return appConfig{}, fmt.Errorf("parse log_level: unknown level %q", raw.LogLevel)
		}
		cfg.LogLevel = level
	}

	if meta.IsDefined("log_format") {
		cfg.LogFormat = pkg.ParseLogFormat(raw.LogFormat)
	}

	if meta.IsDefined("command_depth") {
		cfg.Host.CommandDepth = raw.CommandDepth
	}

	if meta.IsDefined("command_slots") {
		cfg.Host.CommandSlots = raw.CommandSlots
	}

	if meta.IsDefined("trigger_ack") {
		cfg.Host.TriggerAck = raw.TriggerAck
	}

	if meta.IsDefined("link_trigger_mode") {
		cfg.Host.LinkTriggerMode = raw.LinkTriggerMode
	}

	if meta.IsDefined("append_crc") {
		cfg.Host.AppendCRC = raw.AppendCRC
	}

	if meta.IsDefined("tick_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.TickInterval))
		if err != nil {
			return appConfig{}, fmt.Errorf("parse tick_interval: %w", err)
		}
		cfg.Host.TickInterval = d
	}

	if meta.IsDefined("ticks_per_batch") {
		cfg.Host.TicksPerBatch = raw.TicksPerBatch
	}

	if err := cfg.Host.Validate(); err != nil {
		return appConfig{}, fmt.Errorf("validate cxphost config: %w", err)
	}
	return cfg, nil
}

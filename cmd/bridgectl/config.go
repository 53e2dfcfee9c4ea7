package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/webbridge/internal/bridge"
	"github.com/danmuck/webbridge/internal/config"
	"github.com/danmuck/webbridge/internal/devhost"
	"github.com/danmuck/webbridge/internal/protocol"
	"github.com/danmuck/webbridge/internal/protocol/frame"
	"github.com/rs/zerolog"
)

const (
	envRuntimeID     = "BLDR_RUNTIME_ID"
	envHostInit      = "BLDR_SAUCER_INIT"
	envWebDocumentID = "BLDR_WEB_DOCUMENT_ID"
	envEndpointDir   = "BLDR_ENDPOINT_DIR"
)

type runtimeConfig struct {
	RuntimeID   string
	EndpointDir string
	Service     bridge.ServiceConfig
	DevHost     devhost.Config
}

type fileConfig struct {
	RuntimeID   string      `toml:"runtime_id"`
	EndpointDir string      `toml:"endpoint_dir"`
	DevHost     fileDevHost `toml:"devhost"`
	Bridge      fileBridge  `toml:"bridge"`
}

type fileDevHost struct {
	Addr         string   `toml:"addr"`
	CorsOrigins  []string `toml:"cors_origins"`
	InjectClient bool     `toml:"inject_client"`
	MaxBodyBytes int64    `toml:"max_body_bytes"`
	AdminToken   string   `toml:"admin_token"`
}

type fileBridge struct {
	EvalTimeout      string `toml:"eval_timeout"`
	EndpointWait     string `toml:"endpoint_wait"`
	MaxFrameBytes    uint32 `toml:"max_frame_bytes"`
	DialMaxAttempts  int    `toml:"dial_max_attempts"`
	DialInitialDelay string `toml:"dial_initial_delay"`
	DialMaxDelay     string `toml:"dial_max_delay"`
}

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{
		EndpointDir: os.TempDir(),
		Service:     bridge.DefaultServiceConfig(),
		DevHost: devhost.Config{
			Addr:         "127.0.0.1:8719",
			StartURL:     devhost.StartURL(""),
			MaxBodyBytes: 8 << 20,
			InjectClient: true,
		},
	}
}

func loadRuntimeConfig(path string, cfg *runtimeConfig) error {
	if _, err := config.LoadHostConfig(path); err != nil {
		return err
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load bridge config: %w", err)
	}

	if meta.IsDefined("runtime_id") {
		cfg.RuntimeID = strings.TrimSpace(raw.RuntimeID)
	}
	if meta.IsDefined("endpoint_dir") {
		if dir := strings.TrimSpace(raw.EndpointDir); dir != "" {
			cfg.EndpointDir = dir
		}
	}

	if meta.IsDefined("devhost", "addr") {
		cfg.DevHost.Addr = strings.TrimSpace(raw.DevHost.Addr)
	}
	if meta.IsDefined("devhost", "cors_origins") {
		cfg.DevHost.CORSOrigins = normalizeList(raw.DevHost.CorsOrigins)
	}
	if meta.IsDefined("devhost", "inject_client") {
		cfg.DevHost.InjectClient = raw.DevHost.InjectClient
	}
	if meta.IsDefined("devhost", "max_body_bytes") {
		cfg.DevHost.MaxBodyBytes = raw.DevHost.MaxBodyBytes
	}
	if meta.IsDefined("devhost", "admin_token") {
		cfg.DevHost.AdminToken = strings.TrimSpace(raw.DevHost.AdminToken)
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"eval_timeout", raw.Bridge.EvalTimeout, &cfg.Service.EvalTimeout},
		{"endpoint_wait", raw.Bridge.EndpointWait, &cfg.Service.EndpointWait},
		{"dial_initial_delay", raw.Bridge.DialInitialDelay, &cfg.Service.Dial.Backoff.InitialDelay},
		{"dial_max_delay", raw.Bridge.DialMaxDelay, &cfg.Service.Dial.Backoff.MaxDelay},
	}
	for _, d := range durations {
		if !meta.IsDefined("bridge", d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return fmt.Errorf("parse bridge.%s: %w", d.key, err)
		}
		*d.dst = v
	}
	if cfg.Service.EvalTimeout <= 0 {
		return fmt.Errorf("bridge.eval_timeout must be positive")
	}

	if meta.IsDefined("bridge", "max_frame_bytes") {
		if raw.Bridge.MaxFrameBytes == 0 {
			return fmt.Errorf("bridge.max_frame_bytes must be positive")
		}
		cfg.Service.Limits = frame.Limits{MaxPayloadBytes: raw.Bridge.MaxFrameBytes}
	}
	if meta.IsDefined("bridge", "dial_max_attempts") {
		cfg.Service.Dial.MaxAttempts = raw.Bridge.DialMaxAttempts
	}
	return nil
}

// applyEnv layers the host process environment over cfg. A malformed init
// blob is logged and the defaults are kept.
func applyEnv(cfg *runtimeConfig, getenv func(string) string, logger zerolog.Logger) error {
	if id := strings.TrimSpace(getenv(envRuntimeID)); id != "" {
		cfg.RuntimeID = id
	}
	if cfg.RuntimeID == "" {
		return fmt.Errorf("%s is required", envRuntimeID)
	}
	if dir := strings.TrimSpace(getenv(envEndpointDir)); dir != "" {
		cfg.EndpointDir = dir
	}

	hostInit, err := protocol.ParseHostInit(getenv(envHostInit))
	if err != nil {
		logger.Warn().Err(err).Msg("ignoring malformed host init")
		hostInit = protocol.HostInit{}
	}
	cfg.DevHost.Init = hostInit
	cfg.DevHost.StartURL = devhost.StartURL(getenv(envWebDocumentID))
	return nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/webbridge/internal/protocol/frame"
	"github.com/pelletier/go-toml/v2"
)

// HostConfig is the bridgectl file schema.
type HostConfig struct {
	RuntimeID   string        `toml:"runtime_id"`
	EndpointDir string        `toml:"endpoint_dir"`
	DevHost     DevHostConfig `toml:"devhost"`
	Bridge      BridgeConfig  `toml:"bridge"`
}

type DevHostConfig struct {
	Addr         string   `toml:"addr"`
	CorsOrigins  []string `toml:"cors_origins"`
	InjectClient bool     `toml:"inject_client"`
	MaxBodyBytes int64    `toml:"max_body_bytes"`
	AdminToken   string   `toml:"admin_token"`
}

type BridgeConfig struct {
	EvalTimeout      string `toml:"eval_timeout"`
	EndpointWait     string `toml:"endpoint_wait"`
	MaxFrameBytes    uint32 `toml:"max_frame_bytes"`
	DialMaxAttempts  int    `toml:"dial_max_attempts"`
	DialInitialDelay string `toml:"dial_initial_delay"`
	DialMaxDelay     string `toml:"dial_max_delay"`
}

// BackendConfig is the backendctl file schema.
type BackendConfig struct {
	RuntimeID     string `toml:"runtime_id"`
	EndpointDir   string `toml:"endpoint_dir"`
	Root          string `toml:"root"`
	MaxFrameBytes uint32 `toml:"max_frame_bytes"`
}

func LoadHostConfig(path string) (HostConfig, error) {
	var cfg HostConfig
	if err := loadToml(path, &cfg); err != nil {
		return HostConfig{}, err
	}
	if cfg.DevHost.Addr == "" {
		cfg.DevHost.Addr = "127.0.0.1:8719"
	}
	if cfg.Bridge.MaxFrameBytes == 0 {
		cfg.Bridge.MaxFrameBytes = frame.DefaultMaxPayloadBytes
	}
	if err := ValidateHostConfig(cfg); err != nil {
		return HostConfig{}, err
	}
	return cfg, nil
}

func LoadBackendConfig(path string) (BackendConfig, error) {
	var cfg BackendConfig
	if err := loadToml(path, &cfg); err != nil {
		return BackendConfig{}, err
	}
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if cfg.MaxFrameBytes == 0 {
		cfg.MaxFrameBytes = frame.DefaultMaxPayloadBytes
	}
	if err := ValidateBackendConfig(cfg); err != nil {
		return BackendConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateHostConfig(cfg HostConfig) error {
	if strings.TrimSpace(cfg.DevHost.Addr) == "" {
		return fmt.Errorf("host config missing devhost.addr")
	}
	if cfg.DevHost.MaxBodyBytes < 0 {
		return fmt.Errorf("devhost.max_body_bytes must not be negative")
	}
	if cfg.Bridge.MaxFrameBytes == 0 {
		return fmt.Errorf("bridge.max_frame_bytes must be positive")
	}
	if cfg.Bridge.DialMaxAttempts < 0 {
		return fmt.Errorf("bridge.dial_max_attempts must not be negative")
	}
	durations := map[string]string{
		"bridge.eval_timeout":       cfg.Bridge.EvalTimeout,
		"bridge.endpoint_wait":      cfg.Bridge.EndpointWait,
		"bridge.dial_initial_delay": cfg.Bridge.DialInitialDelay,
		"bridge.dial_max_delay":     cfg.Bridge.DialMaxDelay,
	}
	for key, raw := range durations {
		if _, err := ParseDuration(raw); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	if d, _ := ParseDuration(cfg.Bridge.EvalTimeout); cfg.Bridge.EvalTimeout != "" && d <= 0 {
		return fmt.Errorf("bridge.eval_timeout must be positive")
	}
	return nil
}

func ValidateBackendConfig(cfg BackendConfig) error {
	if strings.TrimSpace(cfg.Root) == "" {
		return fmt.Errorf("backend config missing root")
	}
	if cfg.MaxFrameBytes == 0 {
		return fmt.Errorf("max_frame_bytes must be positive")
	}
	info, err := os.Stat(cfg.Root)
	if err != nil {
		return fmt.Errorf("backend root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("backend root %s is not a directory", cfg.Root)
	}
	return nil
}

// ParseDuration parses a duration field. Empty means unset and yields zero.
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}

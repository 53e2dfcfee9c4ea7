package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/webbridge/internal/bridge"
	"github.com/danmuck/webbridge/internal/devhost"
	"github.com/danmuck/webbridge/internal/logging"
	"github.com/danmuck/webbridge/internal/pipe"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "", "optional TOML overlay (see configgen -kind host)")
	flag.Parse()

	logging.ConfigureRuntime()
	logger := logging.New("bridgectl")

	cfg := defaultRuntimeConfig()
	if *configPath != "" {
		if err := loadRuntimeConfig(*configPath, &cfg); err != nil {
			logger.Fatal().Err(err).Msg("config")
		}
	}
	if err := applyEnv(&cfg, os.Getenv, logger); err != nil {
		logger.Fatal().Err(err).Msg("environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("bridgectl exited")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg runtimeConfig, logger zerolog.Logger) error {
	hub := devhost.NewHub(logger)
	path := pipe.EndpointPath(cfg.EndpointDir, pipe.EndpointName(cfg.RuntimeID))
	logger.Info().Str("endpoint", path).Msg("connecting to backend")

	svc, err := bridge.Connect(ctx, path, hub, cfg.Service, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn().Err(err).Msg("bridge close")
		}
	}()
	svc.Start(ctx)

	host := devhost.New(cfg.DevHost, svc, hub, logger)
	logger.Info().Str("addr", cfg.DevHost.Addr).Str("start_url", cfg.DevHost.StartURL).Msg("devhost ready")
	return host.Run(ctx)
}

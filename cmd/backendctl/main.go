package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/danmuck/webbridge/internal/backend"
	"github.com/danmuck/webbridge/internal/bridge"
	"github.com/danmuck/webbridge/internal/config"
	"github.com/danmuck/webbridge/internal/logging"
	"github.com/danmuck/webbridge/internal/observability"
	"github.com/danmuck/webbridge/internal/pipe"
	"github.com/danmuck/webbridge/internal/protocol/frame"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "", "optional TOML config (see configgen -kind backend)")
	root := flag.String("root", "", "directory served to the webview")
	evalStdin := flag.Bool("eval", true, "evaluate stdin lines in the webview")
	flag.Parse()

	logging.ConfigureRuntime()
	logger := logging.New("backendctl")

	cfg := config.BackendConfig{
		EndpointDir:   os.TempDir(),
		Root:          ".",
		MaxFrameBytes: frame.DefaultMaxPayloadBytes,
	}
	if *configPath != "" {
		loaded, err := config.LoadBackendConfig(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("config")
		}
		cfg = loaded
		if cfg.EndpointDir == "" {
			cfg.EndpointDir = os.TempDir()
		}
	}
	if *root != "" {
		cfg.Root = *root
	}
	if id := strings.TrimSpace(os.Getenv("BLDR_RUNTIME_ID")); id != "" {
		cfg.RuntimeID = id
	}
	if cfg.RuntimeID == "" {
		logger.Fatal().Msg("BLDR_RUNTIME_ID is required")
	}
	if err := config.ValidateBackendConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *evalStdin, logger); err != nil {
		logger.Error().Err(err).Msg("backendctl exited")
		os.Exit(1)
	}
}

func newHandler(root string, logger zerolog.Logger) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(logger))
	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})
	r.NoRoute(gin.WrapH(http.FileServer(http.Dir(root))))
	return r
}

func run(ctx context.Context, cfg config.BackendConfig, evalStdin bool, logger zerolog.Logger) error {
	path := pipe.EndpointPath(cfg.EndpointDir, pipe.EndpointName(cfg.RuntimeID))
	ln, err := pipe.Listen(path)
	if err != nil {
		return err
	}
	defer ln.Close()
	logger.Info().Str("endpoint", path).Str("root", cfg.Root).Msg("waiting for host")

	served := make(chan struct{})
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	session, err := backend.Accept(ln, logger)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer session.Close()

	limits := frame.Limits{MaxPayloadBytes: cfg.MaxFrameBytes}
	server := backend.NewServer(newHandler(cfg.Root, logger), limits, logger)
	go func() {
		server.ServeSession(ctx, session)
		close(served)
	}()

	if evalStdin {
		go evalLoop(ctx, session, limits, logger)
	}

	select {
	case <-ctx.Done():
	case <-served:
		logger.Info().Msg("host disconnected")
	}
	return nil
}

func evalLoop(ctx context.Context, session bridge.Session, limits frame.Limits, logger zerolog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		expr := strings.TrimSpace(scanner.Text())
		if expr == "" {
			continue
		}
		result, err := backend.Eval(ctx, session, expr, limits)
		if err != nil {
			logger.Warn().Err(err).Str("expr", expr).Msg("eval failed")
			continue
		}
		fmt.Fprintln(os.Stdout, result)
	}
}

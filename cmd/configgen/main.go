package main

import (
	"flag"

	"github.com/danmuck/webbridge/internal/config"
	"github.com/danmuck/webbridge/internal/logging"
)

func defaultPath(kind string) (string, bool) {
	switch kind {
	case "host":
		return "cmd/bridgectl/config.toml", true
	case "backend":
		return "cmd/backendctl/config.toml", true
	default:
		return "", false
	}
}

func main() {
	kind := flag.String("kind", "host", "config kind: host|backend")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	logging.ConfigureRuntime()
	logger := logging.New("configgen")

	fallback, ok := defaultPath(*kind)
	if !ok {
		logger.Fatal().Str("kind", *kind).Msg("unknown kind")
	}

	if *validate {
		path := *input
		if path == "" {
			path = fallback
		}
		var err error
		switch *kind {
		case "host":
			_, err = config.LoadHostConfig(path)
		case "backend":
			_, err = config.LoadBackendConfig(path)
		}
		if err != nil {
			logger.Fatal().Err(err).Msg("validation failed")
		}
		logger.Info().Str("kind", *kind).Str("path", path).Msg("validated config")
		return
	}

	target := *output
	if target == "" {
		target = fallback
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		logger.Fatal().Err(err).Msg("write template failed")
	}
	logger.Info().Str("kind", *kind).Str("path", target).Msg("wrote config template")
}

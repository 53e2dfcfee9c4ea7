package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New returns the process logger tagged with app. Call after Configure.
func New(app string) zerolog.Logger {
	return log.Logger.With().Str("app", app).Logger()
}

// Component derives a child logger for one subsystem.
func Component(parent zerolog.Logger, name string) zerolog.Logger {
	return parent.With().Str("component", name).Logger()
}

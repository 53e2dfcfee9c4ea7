package bridge

import (
	"fmt"
	"io"
	"net"

	"github.com/hashicorp/yamux"
	"github.com/rs/zerolog"
)

// Session is the multiplexed session the bridge runs on. *yamux.Session satisfies it.
type Session interface {
	Open() (net.Conn, error)
	Accept() (net.Conn, error)
	Close() error
}

// SessionConfig returns the yamux settings shared by both ends: keepalive off,
// session diagnostics routed into logger.
func SessionConfig(logger zerolog.Logger) *yamux.Config {
	cfg := yamux.DefaultConfig()
	cfg.EnableKeepAlive = false
	cfg.LogOutput = logger.With().Str("component", "yamux").Logger()
	return cfg
}

// NewClientSession starts the host end of the session over conn.
func NewClientSession(conn io.ReadWriteCloser, logger zerolog.Logger) (*yamux.Session, error) {
	s, err := yamux.Client(conn, SessionConfig(logger))
	if err != nil {
		return nil, fmt.Errorf("bridge: client session: %w", err)
	}
	return s, nil
}

// NewServerSession starts the backend end of the session over conn.
func NewServerSession(conn io.ReadWriteCloser, logger zerolog.Logger) (*yamux.Session, error) {
	s, err := yamux.Server(conn, SessionConfig(logger))
	if err != nil {
		return nil, fmt.Errorf("bridge: server session: %w", err)
	}
	return s, nil
}

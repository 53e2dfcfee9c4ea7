package backend

import (
	"context"
	"testing"
	"time"

	"github.com/danmuck/webbridge/internal/bridge"
	"github.com/rs/zerolog"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newTestService runs a host bridge on an existing session.
func newTestService(t *testing.T, session bridge.Session, surface bridge.Surface) *bridge.Service {
	t.Helper()
	cfg := bridge.DefaultServiceConfig()
	cfg.EvalTimeout = 2 * time.Second
	svc := bridge.NewSessionService(nopCloser{}, session, surface, cfg, zerolog.Nop())
	svc.Start(context.Background())
	t.Cleanup(func() { svc.Close() })
	return svc
}

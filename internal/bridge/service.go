package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/danmuck/webbridge/internal/pipe"
	"github.com/danmuck/webbridge/internal/protocol/frame"
	"github.com/rs/zerolog"
)

// ServiceConfig defines the host bridge runtime settings.
type ServiceConfig struct {
	EvalTimeout  time.Duration
	Limits       frame.Limits
	Dial         pipe.DialConfig
	EndpointWait time.Duration
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		EvalTimeout:  30 * time.Second,
		Limits:       frame.DefaultLimits(),
		Dial:         pipe.DefaultDialConfig(),
		EndpointWait: 10 * time.Second,
	}
}

// Service owns the channel, the session on top of it, and the surface guard.
type Service struct {
	cfg     ServiceConfig
	channel io.Closer
	session Session
	logger  zerolog.Logger

	guard      *SurfaceGuard
	registry   *Registry
	forwarder  *Forwarder
	dispatcher *Dispatcher

	cancel    context.CancelFunc
	startOnce sync.Once
	closeOnce sync.Once
	closeErr  error
	serveDone chan struct{}
}

// Connect waits for the endpoint, dials it, and starts the session.
func Connect(ctx context.Context, path string, surface Surface, cfg ServiceConfig, logger zerolog.Logger) (*Service, error) {
	if cfg.EndpointWait > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, cfg.EndpointWait)
		err := pipe.WaitForEndpoint(waitCtx, path)
		cancel()
		if err != nil {
			logger.Debug().Err(err).Str("endpoint", path).Msg("endpoint not observed, dialing anyway")
		}
	}
	client, err := pipe.DialRetry(ctx, path, cfg.Dial)
	if err != nil {
		return nil, err
	}
	svc, err := NewService(client, surface, cfg, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	return svc, nil
}

// NewService starts a client session over an established channel.
func NewService(client *pipe.Client, surface Surface, cfg ServiceConfig, logger zerolog.Logger) (*Service, error) {
	session, err := NewClientSession(pipe.NewConn(client), logger)
	if err != nil {
		return nil, err
	}
	return NewSessionService(client, session, surface, cfg, logger), nil
}

// NewSessionService builds a Service on an established session. channel is closed
// after the session on Close.
func NewSessionService(channel io.Closer, session Session, surface Surface, cfg ServiceConfig, logger zerolog.Logger) *Service {
	logger = logger.With().Str("component", "bridge").Logger()
	registry := NewRegistry()
	guard := NewSurfaceGuard(surface)
	return &Service{
		cfg:        cfg,
		channel:    channel,
		session:    session,
		logger:     logger,
		guard:      guard,
		registry:   registry,
		forwarder:  NewForwarder(session, cfg.Limits, logger),
		dispatcher: NewDispatcher(session, registry, guard, cfg.Limits, cfg.EvalTimeout, logger),
		serveDone:  make(chan struct{}),
	}
}

// Start runs the inbound accept loop until the session closes. Close cancels
// the context handed to stream handlers.
func (s *Service) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)
		go func() {
			defer close(s.serveDone)
			s.dispatcher.Serve(ctx)
		}()
	})
}

func (s *Service) Forward(ctx context.Context, req Request, w ResponseWriter) {
	s.forwarder.Forward(ctx, req, w)
}

// HandleMessage feeds one surface message into the eval registry. It returns
// false when the message is not an eval outcome.
func (s *Service) HandleMessage(msg string) bool {
	return s.registry.HandleMessage(msg)
}

func (s *Service) Registry() *Registry {
	return s.registry
}

func (s *Service) SurfaceAlive() bool {
	return s.guard.Alive()
}

// Close shuts down in a fixed order: session, surface, channel. The session
// goes first so the accept loop and stream handlers unblock.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if err := s.session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session: %w", err))
		}
		s.startOnce.Do(func() { close(s.serveDone) })
		if s.cancel != nil {
			s.cancel()
		}
		<-s.serveDone
		s.dispatcher.Wait()
		s.guard.Teardown()
		if err := s.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
		s.closeErr = errors.Join(errs...)
		s.logger.Info().Msg("bridge closed")
	})
	return s.closeErr
}

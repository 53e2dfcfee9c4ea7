package bridge

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/webbridge/internal/observability"
	"github.com/danmuck/webbridge/internal/protocol"
	"github.com/danmuck/webbridge/internal/protocol/frame"
	"github.com/rs/zerolog"
)

// EvalTimeoutMessage is the error text returned when no outcome arrives in time.
const EvalTimeoutMessage = "eval timeout"

// Dispatcher accepts backend-initiated streams and runs one eval command per stream.
type Dispatcher struct {
	session  Session
	registry *Registry
	guard    *SurfaceGuard
	limits   frame.Limits
	timeout  time.Duration
	logger   zerolog.Logger

	wg sync.WaitGroup
}

func NewDispatcher(session Session, registry *Registry, guard *SurfaceGuard, limits frame.Limits, timeout time.Duration, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		session:  session,
		registry: registry,
		guard:    guard,
		limits:   limits,
		timeout:  timeout,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Serve accepts streams until the session closes. Each stream gets its own goroutine.
func (d *Dispatcher) Serve(ctx context.Context) {
	for {
		stream, err := d.session.Accept()
		if err != nil {
			d.logger.Debug().Err(err).Msg("accept loop stopped")
			return
		}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.handle(ctx, stream)
		}()
	}
}

// Wait blocks until every in-flight stream handler has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) handle(ctx context.Context, stream net.Conn) {
	defer stream.Close()

	payload, err := frame.ReadFrame(stream, d.limits)
	if err != nil {
		d.logger.Warn().Err(err).Msg("reject eval stream")
		observability.RecordEval(observability.EvalRejected)
		return
	}
	req, err := protocol.DecodeEvalRequest(payload)
	if err != nil {
		d.logger.Warn().Err(err).Msg("reject eval stream")
		observability.RecordEval(observability.EvalRejected)
		return
	}

	resp := d.Run(ctx, req.Code)
	if err := frame.WriteFrame(stream, protocol.EncodeEvalResponse(resp), d.limits); err != nil {
		d.logger.Debug().Err(err).Msg("write eval response")
	}
}

// Run executes code on the surface and waits for its outcome. The placeholder in
// code is replaced with a fresh eval id first.
func (d *Dispatcher) Run(ctx context.Context, code string) protocol.EvalResponse {
	id := d.registry.NextID()
	logger := d.logger.With().Str("eval_id", id).Logger()
	code = strings.ReplaceAll(code, protocol.EvalIDPlaceholder, id)

	if err := d.registry.Register(id); err != nil {
		logger.Error().Err(err).Msg("register eval")
		observability.RecordEval(observability.EvalError)
		return protocol.EvalResponse{Error: err.Error()}
	}
	if err := d.guard.Execute(code); err != nil {
		logger.Warn().Err(err).Msg("execute eval")
		d.registry.Deliver(id, protocol.EvalResponse{Error: err.Error()})
	}

	resp, err := d.registry.Wait(ctx, id, d.timeout)
	switch {
	case errors.Is(err, ErrEvalTimeout):
		logger.Warn().Dur("timeout", d.timeout).Msg("eval timed out")
		observability.RecordEval(observability.EvalTimeout)
		return protocol.EvalResponse{Error: EvalTimeoutMessage}
	case err != nil:
		observability.RecordEval(observability.EvalError)
		return protocol.EvalResponse{Error: err.Error()}
	case resp.Error != "":
		observability.RecordEval(observability.EvalError)
	default:
		observability.RecordEval(observability.EvalResult)
	}
	logger.Debug().Bool("error", resp.Error != "").Msg("eval complete")
	return resp
}

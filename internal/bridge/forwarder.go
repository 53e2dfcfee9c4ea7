package bridge

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/webbridge/internal/observability"
	"github.com/danmuck/webbridge/internal/protocol"
	"github.com/danmuck/webbridge/internal/protocol/frame"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultMime = "application/octet-stream"
	ErrorMime   = "text/plain"
)

// Forward outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeGateway = "gateway"
	OutcomeAborted = "aborted"
)

// Request is one logical request to forward. A non-empty Body is sent as a single chunk.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// ResponseStart opens the caller's response. Headers never contains the content type.
type ResponseStart struct {
	Status  int
	Mime    string
	Headers map[string]string
}

// ResponseWriter receives one streamed response: Start once, any Writes, then Finish once.
type ResponseWriter interface {
	Start(ResponseStart)
	Write(p []byte) error
	Finish()
}

type Forwarder struct {
	session Session
	limits  frame.Limits
	logger  zerolog.Logger
}

func NewForwarder(session Session, limits frame.Limits, logger zerolog.Logger) *Forwarder {
	return &Forwarder{
		session: session,
		limits:  limits,
		logger:  logger.With().Str("component", "forwarder").Logger(),
	}
}

// Forward sends req over a new stream and streams the reply into w. Every failure
// before the response starts becomes a 502; after that the response just ends.
// Cancelling ctx unblocks the stream.
func (f *Forwarder) Forward(ctx context.Context, req Request, w ResponseWriter) {
	start := time.Now()
	logger := f.logger.With().
		Str("request_id", uuid.NewString()).
		Str("method", req.Method).
		Str("url", req.URL).
		Logger()

	stream, err := f.session.Open()
	if err != nil {
		logger.Warn().Err(err).Msg("open stream")
		f.gateway(w, start)
		return
	}
	defer stream.Close()
	stop := context.AfterFunc(ctx, func() {
		_ = stream.SetDeadline(time.Now())
	})
	defer stop()

	if err := f.send(stream, req); err != nil {
		logger.Warn().Err(err).Msg("send request")
		f.gateway(w, start)
		return
	}

	status, outcome := f.pump(stream, w, logger)
	if outcome == OutcomeGateway {
		f.gateway(w, start)
		return
	}
	observability.RecordForward(status, outcome, time.Since(start))
	logger.Debug().Int("status", status).Str("outcome", outcome).Dur("duration", time.Since(start)).Msg("forwarded")
}

func (f *Forwarder) send(stream net.Conn, req Request) error {
	info := protocol.RequestInfo{
		Method:  req.Method,
		URL:     req.URL,
		Headers: req.Headers,
		HasBody: len(req.Body) > 0,
	}
	if err := frame.WriteFrame(stream, protocol.EncodeRequestInfo(info), f.limits); err != nil {
		return err
	}
	if !info.HasBody {
		return nil
	}
	return frame.WriteFrame(stream, protocol.EncodeRequestData(protocol.RequestData{Data: req.Body, Done: true}), f.limits)
}

// pump copies response frames into w until a done chunk or a failure.
func (f *Forwarder) pump(stream net.Conn, w ResponseWriter, logger zerolog.Logger) (int, string) {
	started := false
	status := 0
	finish := func(outcome string) (int, string) {
		if !started {
			return http.StatusBadGateway, OutcomeGateway
		}
		w.Finish()
		return status, outcome
	}

	for {
		payload, err := frame.ReadFrame(stream, f.limits)
		if err != nil {
			logger.Debug().Err(err).Bool("started", started).Msg("read response frame")
			return finish(OutcomeAborted)
		}
		resp, err := protocol.DecodeFetchResponse(payload)
		if err != nil {
			logger.Warn().Err(err).Bool("started", started).Msg("decode response frame")
			return finish(OutcomeAborted)
		}

		if resp.Info != nil && !started {
			started = true
			rs := responseStart(resp.Info)
			status = rs.Status
			w.Start(rs)
		}
		if resp.Data == nil {
			continue
		}
		if !started {
			started = true
			status = http.StatusOK
			w.Start(ResponseStart{Status: status, Mime: DefaultMime})
		}
		if len(resp.Data.Data) > 0 {
			if err := w.Write(resp.Data.Data); err != nil {
				logger.Debug().Err(err).Msg("response writer gone")
				return finish(OutcomeAborted)
			}
		}
		if resp.Data.Done {
			return finish(OutcomeOK)
		}
	}
}

func (f *Forwarder) gateway(w ResponseWriter, start time.Time) {
	w.Start(ResponseStart{Status: http.StatusBadGateway, Mime: ErrorMime})
	w.Finish()
	observability.RecordForward(http.StatusBadGateway, OutcomeGateway, time.Since(start))
}

// responseStart lifts the content type out of the header set. A zero status means 200.
func responseStart(info *protocol.ResponseInfo) ResponseStart {
	rs := ResponseStart{
		Status:  int(info.Status),
		Mime:    DefaultMime,
		Headers: make(map[string]string, len(info.Headers)),
	}
	if rs.Status == 0 {
		rs.Status = http.StatusOK
	}
	for k, v := range info.Headers {
		if strings.EqualFold(k, "content-type") {
			rs.Mime = v
			continue
		}
		rs.Headers[k] = v
	}
	return rs
}

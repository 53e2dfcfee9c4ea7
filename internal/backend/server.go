package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/danmuck/webbridge/internal/bridge"
	"github.com/danmuck/webbridge/internal/protocol"
	"github.com/danmuck/webbridge/internal/protocol/frame"
	"github.com/hashicorp/yamux"
	"github.com/rs/zerolog"
)

// MaxChunkBytes bounds the body carried by one ResponseData frame.
const MaxChunkBytes = 256 * 1024

var (
	ErrMissingRequestInfo = errors.New("backend: stream did not start with request info")
	ErrEvalFailed         = errors.New("backend: eval failed")
)

type Server struct {
	handler http.Handler
	limits  frame.Limits
	logger  zerolog.Logger

	wg sync.WaitGroup
}

func NewServer(handler http.Handler, limits frame.Limits, logger zerolog.Logger) *Server {
	return &Server{
		handler: handler,
		limits:  limits,
		logger:  logger.With().Str("component", "backend").Logger(),
	}
}

// Accept waits for the host to connect on ln and starts the server end of the session.
func Accept(ln net.Listener, logger zerolog.Logger) (*yamux.Session, error) {
	conn, err := ln.Accept()
	if err != nil {
		return nil, fmt.Errorf("backend: accept host: %w", err)
	}
	session, err := bridge.NewServerSession(conn, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return session, nil
}

// ServeSession answers fetch streams until the session closes, then waits for
// in-flight streams.
func (s *Server) ServeSession(ctx context.Context, session bridge.Session) {
	defer s.wg.Wait()
	for {
		stream, err := session.Accept()
		if err != nil {
			s.logger.Debug().Err(err).Msg("session accept stopped")
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer stream.Close()
			if err := s.serveStream(ctx, stream); err != nil {
				s.logger.Warn().Err(err).Msg("fetch stream")
			}
		}()
	}
}

func (s *Server) serveStream(ctx context.Context, stream net.Conn) error {
	payload, err := frame.ReadFrame(stream, s.limits)
	if err != nil {
		return err
	}
	first, err := protocol.DecodeFetchRequest(payload)
	if err != nil {
		return err
	}
	if first.Info == nil {
		return ErrMissingRequestInfo
	}
	info := first.Info

	var body []byte
	if info.HasBody {
		if body, err = s.readBody(stream); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, info.Method, info.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	req.RequestURI = req.URL.RequestURI()
	for k, v := range info.Headers {
		req.Header.Set(k, v)
	}

	w := newStreamWriter(stream, s.limits)
	s.handler.ServeHTTP(w, req)
	return w.finish()
}

func (s *Server) readBody(stream net.Conn) ([]byte, error) {
	var body []byte
	for {
		payload, err := frame.ReadFrame(stream, s.limits)
		if err != nil {
			return nil, err
		}
		msg, err := protocol.DecodeFetchRequest(payload)
		if err != nil {
			return nil, err
		}
		if msg.Data == nil {
			continue
		}
		body = append(body, msg.Data.Data...)
		if msg.Data.Done {
			return body, nil
		}
	}
}

// streamWriter is an http.ResponseWriter that emits ResponseInfo on the first
// header write and one ResponseData frame per body write.
type streamWriter struct {
	stream  net.Conn
	limits  frame.Limits
	header  http.Header
	status  int
	started bool
	err     error
}

func newStreamWriter(stream net.Conn, limits frame.Limits) *streamWriter {
	return &streamWriter{stream: stream, limits: limits, header: make(http.Header)}
}

func (w *streamWriter) Header() http.Header {
	return w.header
}

func (w *streamWriter) WriteHeader(status int) {
	if w.started {
		return
	}
	w.started = true
	w.status = status
	headers := make(map[string]string, len(w.header))
	for k, v := range w.header {
		headers[k] = strings.Join(v, ", ")
	}
	w.send(protocol.EncodeResponseInfo(protocol.ResponseInfo{
		Headers:    headers,
		OK:         status >= 200 && status < 300,
		Status:     uint32(status),
		StatusText: http.StatusText(status),
	}))
}

func (w *streamWriter) Write(p []byte) (int, error) {
	if !w.started {
		if w.header.Get("Content-Type") == "" {
			w.header.Set("Content-Type", http.DetectContentType(p))
		}
		w.WriteHeader(http.StatusOK)
	}
	for off := 0; off < len(p); off += MaxChunkBytes {
		end := min(off+MaxChunkBytes, len(p))
		w.send(protocol.EncodeResponseData(protocol.ResponseData{Data: p[off:end]}))
		if w.err != nil {
			return off, w.err
		}
	}
	return len(p), w.err
}

// Flush is a no-op; every Write is already on the wire.
func (w *streamWriter) Flush() {}

func (w *streamWriter) finish() error {
	if !w.started {
		w.WriteHeader(http.StatusOK)
	}
	w.send(protocol.EncodeResponseData(protocol.ResponseData{Done: true}))
	return w.err
}

func (w *streamWriter) send(msg []byte) {
	if w.err != nil {
		return
	}
	w.err = frame.WriteFrame(w.stream, msg, w.limits)
}

package bridge

import (
	"bytes"
	"fmt"
	"net"
	"sync"
	"testing"

	"github.com/hashicorp/yamux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func sessionPair(t *testing.T) (*yamux.Session, *yamux.Session) {
	t.Helper()
	hostConn, backendConn := net.Pipe()
	host, err := NewClientSession(hostConn, zerolog.Nop())
	require.NoError(t, err)
	backend, err := NewServerSession(backendConn, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		host.Close()
		backend.Close()
	})
	return host, backend
}

// recordWriter captures every ResponseWriter call in order.
type recordWriter struct {
	mu       sync.Mutex
	events   []string
	start    ResponseStart
	starts   int
	finishes int
	body     bytes.Buffer
	writeErr error
}

func (w *recordWriter) Start(rs ResponseStart) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.starts++
	w.start = rs
	w.events = append(w.events, fmt.Sprintf("start %d %s", rs.Status, rs.Mime))
}

func (w *recordWriter) Write(p []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writeErr != nil {
		return w.writeErr
	}
	w.body.Write(p)
	w.events = append(w.events, "write "+string(p))
	return nil
}

func (w *recordWriter) Finish() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.finishes++
	w.events = append(w.events, "finish")
}

type fakeSurface struct {
	mu        sync.Mutex
	codes     []string
	err       error
	onExecute func(code string)
}

func (s *fakeSurface) Execute(code string) error {
	s.mu.Lock()
	s.codes = append(s.codes, code)
	fn := s.onExecute
	s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if fn != nil {
		go fn(code)
	}
	return nil
}

func (s *fakeSurface) executed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.codes...)
}

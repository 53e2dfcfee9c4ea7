//go:build !windows

package pipe

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/webbridge/internal/testutil/testlog"
)

func listenTemp(t *testing.T) (string, net.Listener) {
	t.Helper()
	path := filepath.Join(t.TempDir(), EndpointName("t"))
	ln, err := Listen(path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return path, ln
}

func dialPair(t *testing.T) (*Client, net.Conn) {
	t.Helper()
	path, ln := listenTemp(t)
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- conn
	}()
	client, err := Dial(path)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	server, ok := <-accepted
	if !ok {
		t.Fatalf("accept failed")
	}
	t.Cleanup(func() { server.Close() })
	return client, server
}

func TestEndpointName(t *testing.T) {
	testlog.Start(t)
	if got := EndpointName(" abc "); got != ".pipe-abc" {
		t.Fatalf("endpoint name: %q", got)
	}
	if got := EndpointPath("", ".pipe-abc"); got != ".pipe-abc" {
		t.Fatalf("relative path: %q", got)
	}
}

func TestDialMissingEndpoint(t *testing.T) {
	testlog.Start(t)
	_, err := Dial(filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Fatalf("expected dial error")
	}
}

func TestClientReadWrite(t *testing.T) {
	testlog.Start(t)
	client, server := dialPair(t)

	if err := client.Write([]byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(server, buf); err != nil {
		t.Fatalf("server read: %v", err)
	}
	if string(buf) != "ping" {
		t.Fatalf("server got %q", buf)
	}

	if _, err := server.Write([]byte("pong")); err != nil {
		t.Fatalf("server write: %v", err)
	}
	got, err := client.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "pong" {
		t.Fatalf("client got %q", got)
	}
	if err := client.Write(nil); err != nil {
		t.Fatalf("empty write: %v", err)
	}
}

func TestReadChunkCap(t *testing.T) {
	testlog.Start(t)
	client, server := dialPair(t)
	payload := bytes.Repeat([]byte{0xab}, MaxReadChunk*2+10)
	go server.Write(payload)

	var got []byte
	for len(got) < len(payload) {
		chunk, err := client.Read()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if len(chunk) > MaxReadChunk {
			t.Fatalf("chunk of %d exceeds cap", len(chunk))
		}
		got = append(got, chunk...)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestReadTimeoutReturnsEmpty(t *testing.T) {
	testlog.Start(t)
	client, _ := dialPair(t)
	got, err := client.ReadTimeout(20 * time.Millisecond)
	if err != nil {
		t.Fatalf("timed read: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no data, got %q", got)
	}
	if !client.Connected() {
		t.Fatalf("timeout must not disconnect")
	}
}

func TestPeerCloseDisconnects(t *testing.T) {
	testlog.Start(t)
	client, server := dialPair(t)
	server.Close()

	_, err := client.Read()
	if !errors.Is(err, ErrDisconnected) {
		t.Fatalf("expected ErrDisconnected, got %v", err)
	}
	if client.Connected() {
		t.Fatalf("expected disconnected state")
	}
	if err := client.Write([]byte("x")); !errors.Is(err, ErrDisconnected) {
		t.Fatalf("write after disconnect: %v", err)
	}
}

func TestCloseUnblocksRead(t *testing.T) {
	testlog.Start(t)
	client, _ := dialPair(t)

	done := make(chan error, 1)
	go func() {
		_, err := client.Read()
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("read did not unblock")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := client.ReadTimeout(time.Millisecond); !errors.Is(err, ErrClosed) {
		t.Fatalf("read after close: %v", err)
	}
}

func TestConnBuffersOverRead(t *testing.T) {
	testlog.Start(t)
	client, server := dialPair(t)
	conn := NewConn(client)
	if _, err := server.Write([]byte("abcdef")); err != nil {
		t.Fatalf("server write: %v", err)
	}

	small := make([]byte, 2)
	n, err := conn.Read(small)
	if err != nil || n != 2 || string(small) != "ab" {
		t.Fatalf("first read: n=%d err=%v %q", n, err, small)
	}
	// The rest arrived with the first chunk and must come from the buffer.
	server.Close()
	rest := make([]byte, 16)
	n, err = conn.Read(rest)
	if err != nil || string(rest[:n]) != "cdef" {
		t.Fatalf("buffered read: n=%d err=%v %q", n, err, rest[:n])
	}
	if conn.Buffered() != 0 {
		t.Fatalf("expected empty buffer")
	}
	if _, err := conn.Read(rest); err != io.EOF {
		t.Fatalf("expected EOF after peer close, got %v", err)
	}
	if !conn.IsClosed() {
		t.Fatalf("expected IsClosed after disconnect")
	}
}

func TestNextBackoffDelay(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{InitialDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: 500 * time.Millisecond}
	want := []time.Duration{100, 200, 400, 500, 500}
	for i, w := range want {
		if got := NextBackoffDelay(cfg, i+1, nil); got != w*time.Millisecond {
			t.Fatalf("attempt %d: got %v want %v", i+1, got, w*time.Millisecond)
		}
	}
	cfg.Jitter = true
	rng := rand.New(rand.NewSource(1))
	for attempt := 2; attempt < 6; attempt++ {
		got := NextBackoffDelay(cfg, attempt, rng)
		if got < 50*time.Millisecond || got > 750*time.Millisecond {
			t.Fatalf("jittered delay out of range: %v", got)
		}
	}
}

func TestDialRetryGivesUp(t *testing.T) {
	testlog.Start(t)
	cfg := DialConfig{MaxAttempts: 3, Backoff: BackoffConfig{InitialDelay: time.Millisecond}}
	_, err := DialRetry(context.Background(), filepath.Join(t.TempDir(), "missing"), cfg)
	if err == nil {
		t.Fatalf("expected error after attempts")
	}
}

func TestDialRetryHonoursContext(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	cfg := DialConfig{Backoff: BackoffConfig{InitialDelay: 5 * time.Millisecond}}
	_, err := DialRetry(ctx, filepath.Join(t.TempDir(), "missing"), cfg)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestWaitForEndpoint(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "s")

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done <- WaitForEndpoint(ctx, path)
	}()
	time.Sleep(20 * time.Millisecond)
	ln, err := Listen(path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	if err := <-done; err != nil {
		t.Fatalf("wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := WaitForEndpoint(ctx, filepath.Join(t.TempDir(), "never")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

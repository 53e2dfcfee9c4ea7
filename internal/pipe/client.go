package pipe

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/webbridge/internal/observability"
	"github.com/rs/zerolog/log"
)

// MaxReadChunk caps the bytes returned by one Read.
const MaxReadChunk = 64 * 1024

// Client owns one connection to a named endpoint.
//
// Reads and writes are serialized independently so a blocked read never
// holds up a write. Close may run concurrently with both.
type Client struct {
	conn     net.Conn
	endpoint string

	readMu  sync.Mutex
	writeMu sync.Mutex
	buf     []byte

	connected atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the endpoint at path. It does not retry.
func Dial(path string) (*Client, error) {
	conn, err := dialEndpoint(path)
	if err != nil {
		return nil, fmt.Errorf("pipe: dial %s: %w", path, err)
	}
	return NewClient(conn, path), nil
}

// NewClient wraps an established connection. endpoint is used for logging only.
func NewClient(conn net.Conn, endpoint string) *Client {
	c := &Client{
		conn:     conn,
		endpoint: endpoint,
		buf:      make([]byte, MaxReadChunk),
	}
	c.connected.Store(true)
	return c
}

func (c *Client) Connected() bool {
	return c.connected.Load()
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// Read blocks until data arrives or the channel disconnects.
func (c *Client) Read() ([]byte, error) {
	return c.read(0)
}

// ReadTimeout waits at most d for data. On expiry it returns (nil, nil).
// A non-positive d waits forever.
func (c *Client) ReadTimeout(d time.Duration) ([]byte, error) {
	return c.read(d)
}

func (c *Client) read(d time.Duration) ([]byte, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	c.readMu.Lock()
	defer c.readMu.Unlock()
	if err := c.usable(); err != nil {
		return nil, err
	}

	if d > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(d)); err != nil {
			return nil, c.fail(err)
		}
		defer c.conn.SetReadDeadline(time.Time{})
	}

	n, err := c.conn.Read(c.buf)
	var out []byte
	if n > 0 {
		out = make([]byte, n)
		copy(out, c.buf[:n])
		observability.RecordPipeBytes(observability.DirectionRead, n)
	}
	if err != nil {
		if d > 0 && errors.Is(err, os.ErrDeadlineExceeded) && !c.closed.Load() {
			return out, nil
		}
		failErr := c.fail(err)
		if n > 0 {
			return out, nil
		}
		return nil, failErr
	}
	return out, nil
}

// Write sends all of p or fails. An empty p is a no-op.
func (c *Client) Write(p []byte) error {
	if err := c.usable(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.usable(); err != nil {
		return err
	}

	for len(p) > 0 {
		n, err := c.conn.Write(p)
		observability.RecordPipeBytes(observability.DirectionWrite, n)
		if err != nil {
			return c.fail(err)
		}
		if n == 0 {
			return c.fail(errors.New("zero-length write"))
		}
		p = p[n:]
	}
	return nil
}

// Close marks the channel disconnected, shuts the transport down so blocked
// calls return, then releases it once no read or write is in flight.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.connected.Store(false)
		if err := shutdownConn(c.conn); err != nil {
			log.Debug().Err(err).Str("endpoint", c.endpoint).Msg("pipe shutdown")
		}
		c.readMu.Lock()
		c.writeMu.Lock()
		c.closeErr = c.conn.Close()
		c.writeMu.Unlock()
		c.readMu.Unlock()
		log.Debug().Str("endpoint", c.endpoint).Msg("pipe closed")
	})
	return c.closeErr
}

func (c *Client) usable() error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.connected.Load() {
		return ErrDisconnected
	}
	return nil
}

func (c *Client) fail(err error) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.connected.Swap(false) {
		log.Debug().Err(err).Str("endpoint", c.endpoint).Msg("pipe disconnected")
	}
	return fmt.Errorf("%w: %w", ErrDisconnected, err)
}

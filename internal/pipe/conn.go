package pipe

import (
	"errors"
	"io"
	"sync"
)

// Conn adapts a Client to io.ReadWriteCloser. Bytes read from the channel
// beyond what the caller asked for are kept and served first on the next Read.
type Conn struct {
	client *Client

	mu      sync.Mutex
	pending []byte
}

func NewConn(client *Client) *Conn {
	return &Conn{client: client}
}

func (c *Conn) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		data, err := c.client.Read()
		if err != nil {
			if errors.Is(err, ErrDisconnected) {
				return 0, io.EOF
			}
			return 0, err
		}
		c.pending = data
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	if len(c.pending) == 0 {
		c.pending = nil
	}
	return n, nil
}

func (c *Conn) Write(p []byte) (int, error) {
	if err := c.client.Write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *Conn) Close() error {
	return c.client.Close()
}

// IsClosed reports whether the underlying channel is no longer connected.
func (c *Conn) IsClosed() bool {
	return !c.client.Connected()
}

// Buffered returns the number of over-read bytes waiting to be served.
func (c *Conn) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

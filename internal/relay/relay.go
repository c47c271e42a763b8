// Package relay implements the outbound half of forwarding a session to
// an upstream instance of this same server: dialing, writing framed
// messages, and reading back commit-point and error replies.
package relay

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/mustafacco7/sudoauditd/internal/wire"
)

// Client is a connection to an upstream relay target. It owns the
// socket and serializes writes; reads are delivered on a channel the
// caller drains for commit points and errors.
type Client struct {
	conn net.Conn

	mu  sync.Mutex
	buf []byte

	Commits chan wire.CommitPoint
	Errors  chan wire.Error

	closeOnce sync.Once
}

// Dial connects to addr (optionally over TLS when tlsConfig is
// non-nil), sends a ClientHello, and starts the background reader that
// feeds Commits and Errors.
func Dial(ctx context.Context, network, addr string, tlsConfig *tls.Config) (*Client, error) {
	d := net.Dialer{}

	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("relay: dial %s: %w", addr, err)
	}

	if tlsConfig != nil {
		tc := tls.Client(conn, tlsConfig)
		if err := tc.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("relay: tls handshake: %w", err)
		}
		conn = tc
	}

	c := &Client{
		conn:    conn,
		Commits: make(chan wire.CommitPoint, 8),
		Errors:  make(chan wire.Error, 1),
	}

	if err := c.Send(wire.ClientHello{}); err != nil {
		_ = conn.Close()
		return nil, err
	}

	go c.readLoop()
	return c, nil
}

// Send packs and frames m, then writes it to the relay connection.
// Sends are serialized; callers do not need their own locking.
func (c *Client) Send(m wire.Message) error {
	body, err := wire.Pack(m)
	if err != nil {
		return fmt.Errorf("relay: pack %T: %w", m, err)
	}

	frame, err := wire.Encode(nil, body)
	if err != nil {
		return fmt.Errorf("relay: encode %T: %w", m, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
	_, err = c.conn.Write(frame)
	return err
}

func (c *Client) readLoop() {
	defer close(c.Commits)
	defer close(c.Errors)

	read := make([]byte, 64*1024)

	for {
		payload, consumed, ok, err := wire.Decode(c.buf)
		if err != nil {
			return
		}
		if ok {
			c.buf = c.buf[consumed:]
			c.dispatch(payload)
			continue
		}

		n, err := c.conn.Read(read)
		if n > 0 {
			c.buf = append(c.buf, read[:n]...)
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) dispatch(payload []byte) {
	m, err := wire.Unpack(payload)
	if err != nil {
		return
	}

	switch v := m.(type) {
	case wire.CommitPoint:
		select {
		case c.Commits <- v:
		default:
		}
	case wire.Error:
		select {
		case c.Errors <- v:
		default:
		}
	}
}

// Close tears down the relay connection exactly once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

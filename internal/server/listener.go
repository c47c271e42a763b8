package server

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// Endpoint is one configured bind address, mirroring spec's listener
// configuration entry: family is implied by the parsed address.
type Endpoint struct {
	Network string // "tcp", "tcp4", or "tcp6"
	Address string // host:port
	TLS     bool
	Keepalive bool
}

// Listener owns a bound, listening socket and the TLS flag that
// decides whether accepted connections go through the handshake
// adapter before protocol start.
type Listener struct {
	net.Listener
	Endpoint Endpoint
}

// CreateListener binds ep with SO_REUSEADDR set, and for an IPv6-only
// network additionally sets IPV6_V6ONLY, matching the accept-loop
// component's documented socket setup. The OS already hands back a
// non-blocking descriptor wrapped by net.Listener; Go's runtime
// poller is the non-blocking I/O multiplexer the spec's accept loop
// names explicitly.
func CreateListener(ctx context.Context, ep Endpoint) (*Listener, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var ctrlErr error
			err := c.Control(func(fd uintptr) {
				ctrlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				if ctrlErr != nil {
					return
				}
				if network == "tcp6" {
					ctrlErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 1)
				}
			})
			if err != nil {
				return err
			}
			return ctrlErr
		},
	}

	ln, err := lc.Listen(ctx, ep.Network, ep.Address)
	if err != nil {
		return nil, fmt.Errorf("server: listen on %s %s: %w", ep.Network, ep.Address, err)
	}

	return &Listener{Listener: ln, Endpoint: ep}, nil
}

func enableKeepalive(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetKeepAlive(true)
	}
}

// PeerAddr formats conn's remote address as a textual IPv4 or IPv6
// literal, used both for logging and TLS hostname validation.
func PeerAddr(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}

package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	tlscpr "github.com/mustafacco7/sudoauditd/pkg/certificates/cipher"
	tlsvrs "github.com/mustafacco7/sudoauditd/pkg/certificates/tlsversion"

	"github.com/mustafacco7/sudoauditd/internal/apperr"
	"github.com/mustafacco7/sudoauditd/internal/commit"
	relaytransport "github.com/mustafacco7/sudoauditd/internal/relay"
	"github.com/mustafacco7/sudoauditd/internal/session"
	"github.com/mustafacco7/sudoauditd/internal/wire"
)

// serverID is sent in every ServerHello.
const serverID = "Sudo Audit Server 1.0"

// Conn is the connection closure: the lifetime unit owning the socket,
// its read buffer, its write queue, its bound state machine and sink,
// and its commit scheduler. One goroutine reads and dispatches; a
// second goroutine drains the write queue, so that a slow peer on the
// write side never blocks the read side mid-message (the Go-native
// rendering of "at most one pending write buffer is in flight": the
// queue is a channel, and the writer goroutine owns draining it).
type Conn struct {
	netConn net.Conn
	peer    string
	log     *logrus.Entry

	writeCh chan []byte
	writeWG sync.WaitGroup

	machine *session.Machine
	sched   *commit.Scheduler

	sinkKind    sinkKind
	sinkCloser  interface{ Close() error }
	journalPath string
	relayClient *relaytransport.Client

	handshakeTimeout time.Duration
	serverTimeout    time.Duration

	closeOnce sync.Once
	doneCh    chan struct{}

	// onFinished is invoked once, from teardown, when a store-first
	// journal connection reaches FINISHED: the lifecycle controller
	// uses it to kick off journal replay to the relay.
	onFinished func(*Conn)
}

// Send implements session.Sender and commit.Sender: it packs, frames,
// and enqueues m without blocking the caller past the channel's
// buffer, preserving strict enqueue ordering (FIFO write queue).
func (c *Conn) Send(m wire.Message) error {
	body, err := wire.Pack(m)
	if err != nil {
		return err
	}

	frame, err := wire.Encode(nil, body)
	if err != nil {
		return err
	}

	select {
	case c.writeCh <- frame:
		return nil
	case <-c.doneCh:
		return fmt.Errorf("server: connection closed")
	}
}

func (c *Conn) writeLoop() {
	defer c.writeWG.Done()

	for frame := range c.writeCh {
		_ = c.netConn.SetWriteDeadline(time.Now().Add(c.serverTimeout))
		if _, err := c.netConn.Write(frame); err != nil {
			c.log.WithError(err).Warn("write failed")
			return
		}
	}
}

// Serve runs the connection to completion: an optional TLS handshake,
// the ServerHello, then the read-dispatch loop until a terminal state
// is reached or the socket errors. It never returns an error; all
// failures are logged and result in the connection closing, matching
// the spec's per-connection error isolation.
func (c *Conn) Serve(ctx context.Context, tlsConfig *tls.Config) {
	defer c.teardown()

	if tlsConfig != nil {
		if err := c.handshake(ctx, tlsConfig); err != nil {
			c.log.WithError(err).Warn("tls handshake failed")
			return
		}
	}

	if err := c.Send(wire.ServerHello{ServerID: serverID}); err != nil {
		c.log.WithError(err).Warn("server hello failed")
		return
	}

	c.readLoop(ctx)
}

func (c *Conn) handshake(ctx context.Context, cfg *tls.Config) error {
	tc := tls.Server(c.netConn, cfg)

	hctx := ctx
	if c.handshakeTimeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, c.handshakeTimeout)
		defer cancel()
	}

	if err := tc.HandshakeContext(hctx); err != nil {
		return err
	}

	state := tc.ConnectionState()
	c.log = c.log.WithFields(logrus.Fields{
		"tls_version": tlsvrs.Version(state.Version).String(),
		"tls_cipher":  tlscpr.Cipher(state.CipherSuite).String(),
	})

	c.netConn = tc
	return nil
}

func (c *Conn) readLoop(ctx context.Context) {
	var buf []byte
	read := make([]byte, 64*1024)

	for {
		payload, consumed, ok, err := wire.Decode(buf)
		if err != nil {
			if _, tooLarge := err.(wire.ErrTooLarge); tooLarge {
				c.sendErrorAndClose(apperr.ErrProtocolOversize.Message())
			} else {
				c.sendErrorAndClose(err.Error())
			}
			return
		}

		if ok {
			buf = buf[consumed:]

			msg, uerr := wire.Unpack(payload)
			if uerr != nil {
				c.sendErrorAndClose(apperr.ErrProtocolMalformed.Message())
				return
			}

			if derr := c.machine.Dispatch(ctx, msg); derr != nil {
				reason, _ := session.ErrorReason(c.machine.State())
				c.sendErrorAndClose(reason)
				return
			}

			switch c.machine.State() {
			case session.Exited:
				// No further client messages are legal; wait for the
				// commit scheduler to emit the session's last
				// CommitPoint and drive EXITED -> FINISHED.
				<-c.sched.Done()
				return
			default:
				if session.IsTerminal(c.machine.State()) {
					return
				}
			}
			continue
		}

		_ = c.netConn.SetReadDeadline(time.Now().Add(c.serverTimeout))
		n, err := c.netConn.Read(read)
		if n > 0 {
			buf = append(buf, read[:n]...)
		}
		if err != nil {
			if session.IsTerminal(c.machine.State()) {
				return
			}
			c.log.WithError(err).Debug("connection read ended")
			return
		}
	}
}

func (c *Conn) sendErrorAndClose(reason string) {
	_ = c.Send(wire.Error{Reason: reason})
	c.log.WithField("reason", reason).Info("closing connection on error")
}

func (c *Conn) teardown() {
	c.closeOnce.Do(func() {
		finished := c.machine.State() == session.Finished

		close(c.doneCh)
		c.sched.Stop()
		close(c.writeCh)
		c.writeWG.Wait()
		_ = c.netConn.Close()

		if c.sinkCloser != nil {
			if err := c.sinkCloser.Close(); err != nil {
				c.log.WithError(err).Warn("sink close failed")
			}
		}

		if finished && c.sinkKind == sinkJournal && c.onFinished != nil {
			c.onFinished(c)
		}
	})
}

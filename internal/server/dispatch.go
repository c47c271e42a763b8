package server

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mustafacco7/sudoauditd/internal/commit"
	relaytransport "github.com/mustafacco7/sudoauditd/internal/relay"
	"github.com/mustafacco7/sudoauditd/internal/session"
	journalsink "github.com/mustafacco7/sudoauditd/internal/sink/journal"
	localsink "github.com/mustafacco7/sudoauditd/internal/sink/local"
	relaysink "github.com/mustafacco7/sudoauditd/internal/sink/relay"
)

type sinkKind int

const (
	sinkLocal sinkKind = iota
	sinkRelay
	sinkJournal
)

// newConnection constructs the connection closure for a freshly
// accepted socket (any TLS handshake happens afterwards, in Serve),
// selecting the sink per the rule in Design Note 2: journal when
// store-first and a relay are both configured, relay when only a relay
// is configured, local otherwise. Journal replay does not go through
// here: onJournalFinished dials its own relay client and calls
// journal.Replay.
func (s *Server) newConnection(netConn net.Conn) (*Conn, error) {
	peer := PeerAddr(netConn)
	log := s.log.Entry("server").WithFields(logrus.Fields{"peer": peer})

	c := &Conn{
		netConn:          netConn,
		peer:             peer,
		log:              log,
		writeCh:          make(chan []byte, 64),
		doneCh:           make(chan struct{}),
		handshakeTimeout: s.cfg.HandshakeTimeout,
		serverTimeout:    s.cfg.ServerTimeout,
	}

	hasRelay := len(s.cfg.RelayEndpoints) > 0
	storeFirst := s.cfg.StoreFirst && hasRelay

	switch {
	case storeFirst:
		if err := os.MkdirAll(s.cfg.JournalRoot, 0700); err != nil {
			return nil, fmt.Errorf("server: create journal root: %w", err)
		}

		journalPath := filepath.Join(s.cfg.JournalRoot, fmt.Sprintf("%d-%s.journal", time.Now().UnixNano(), peer))
		js, err := journalsink.Create(journalPath, 0600)
		if err != nil {
			return nil, err
		}

		c.sinkKind = sinkJournal
		c.sinkCloser = js
		c.journalPath = journalPath
		c.sched = commit.New(s.cfg.AckFrequency, js, c, nil)
		c.machine = session.New(session.Options{
			Sink: js, Out: c, Armer: commit.Noop, StoreFirst: true, HasRelay: true,
		})

	case hasRelay:
		client, err := relaytransport.Dial(context.Background(), "tcp", s.cfg.RelayEndpoints[0], s.relayTLSConfig)
		if err != nil {
			return nil, err
		}

		rs := relaysink.New(client)
		c.sinkKind = sinkRelay
		c.sinkCloser = rs
		c.relayClient = client
		c.sched = commit.New(s.cfg.AckFrequency, rs, c, nil)
		c.machine = session.New(session.Options{
			Sink: rs, Out: c, Armer: commit.Noop, StoreFirst: false, HasRelay: true,
		})

		go relayCommitPump(client, c)

	default:
		ls := localsink.New(localsink.Options{
			EventRoot:       s.cfg.EventLogRoot,
			IORoot:          s.cfg.IOLogRoot,
			EventFileMode:   s.cfg.EventFileMode,
			DropProbability: s.cfg.RandomDropProbability,
		})

		c.sinkKind = sinkLocal
		c.sinkCloser = ls

		sched := commit.New(s.cfg.AckFrequency, ls, c, nil)
		machine := session.New(session.Options{
			Sink: ls, Out: c, Armer: sched, StoreFirst: false, HasRelay: false,
		})
		sched.SetFired(machine)

		c.sched = sched
		c.machine = machine
	}

	return c, nil
}

// relayCommitPump forwards commit points and errors arriving from an
// upstream relay straight to the client: a relay-backed connection
// echoes the relay's own commit points instead of running its own
// timer (invariant 3).
func relayCommitPump(client *relaytransport.Client, c *Conn) {
	for {
		select {
		case cp, ok := <-client.Commits:
			if !ok {
				return
			}
			_ = c.Send(cp)
		case e, ok := <-client.Errors:
			if !ok {
				return
			}
			_ = c.Send(e)
			return
		case <-c.doneCh:
			return
		}
	}
}

// Package server implements the listener, accept loop, connection
// transport, TLS adapter, and lifecycle controller: everything spec.md
// calls the core's outer shell around the state machine in
// internal/session.
package server

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	fileperm "github.com/mustafacco7/sudoauditd/pkg/file/perm"
	"github.com/mustafacco7/sudoauditd/pkg/logger"

	"github.com/mustafacco7/sudoauditd/internal/apperr"
)

// Config is the subset of the listener configuration the server core
// needs; internal/config decodes the on-disk file into this shape.
type Config struct {
	Endpoints             []Endpoint
	TLSConfig             *tls.Config
	ServerTimeout         time.Duration
	HandshakeTimeout      time.Duration
	ShutdownTimeout       time.Duration
	AckFrequency          time.Duration
	RelayEndpoints        []string
	RelayTLSConfig        *tls.Config
	StoreFirst            bool
	EventLogRoot          string
	IOLogRoot             string
	JournalRoot           string
	EventFileMode         fileperm.Perm
	RandomDropProbability float64
	DebugListenAddr       string
}

// Server is the lifecycle controller: it owns the active listeners and
// connections and orchestrates reload and shutdown.
type Server struct {
	cfg            Config
	relayTLSConfig *tls.Config
	log            logger.Logger

	mu        sync.Mutex
	listeners []*Listener
	conns     map[*Conn]struct{}

	wg sync.WaitGroup

	metrics *Metrics
}

// New constructs a Server bound to cfg. It does not yet listen; call
// Run to start accepting.
func New(cfg Config, log logger.Logger) *Server {
	return &Server{
		cfg:            cfg,
		relayTLSConfig: cfg.RelayTLSConfig,
		log:            log,
		conns:          make(map[*Conn]struct{}),
		metrics:        NewMetrics(),
	}
}

// Run creates every configured listener and blocks, accepting
// connections, until ctx is canceled. It returns a fatal configuration
// error (spec §7, kind 5) if not a single listener could be created.
func (s *Server) Run(ctx context.Context) error {
	if err := s.startListeners(ctx); err != nil {
		return err
	}

	if s.cfg.DebugListenAddr != "" {
		go s.serveMetrics(s.cfg.DebugListenAddr)
	}

	<-ctx.Done()
	return nil
}

func (s *Server) startListeners(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	created := 0

	for _, ep := range s.cfg.Endpoints {
		ln, err := CreateListener(ctx, ep)
		if err != nil {
			s.log.Entry("server").WithError(err).Error("failed to create listener")
			lastErr = err
			continue
		}

		s.listeners = append(s.listeners, ln)
		created++

		s.wg.Add(1)
		go s.acceptLoop(ctx, ln)
	}

	if created == 0 {
		return apperr.ErrStartupNoListener.Error(lastErr)
	}
	return nil
}

func (s *Server) acceptLoop(ctx context.Context, ln *Listener) {
	defer s.wg.Done()

	for {
		netConn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			s.log.Entry("server").WithError(err).Warn("accept failed")
			s.metrics.AcceptErrors.Inc()
			continue
		}

		if ln.Endpoint.Keepalive {
			enableKeepalive(netConn)
		}

		s.metrics.Accepted.Inc()
		s.wg.Add(1)
		go s.handle(ctx, netConn, ln.Endpoint.TLS)
	}
}

func (s *Server) handle(ctx context.Context, netConn net.Conn, useTLS bool) {
	defer s.wg.Done()

	c, err := s.newConnection(netConn)
	if err != nil {
		s.log.Entry("server").WithError(err).Error("failed to construct connection")
		s.metrics.ConnErrors.Inc()
		_ = netConn.Close()
		return
	}
	c.onFinished = s.onJournalFinished

	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.metrics.Active.Inc()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.metrics.Active.Dec()
		s.mu.Unlock()
	}()

	c.writeWG.Add(1)
	go c.writeLoop()

	var tlsConfig *tls.Config
	if useTLS {
		tlsConfig = s.cfg.TLSConfig
	}

	c.Serve(ctx, tlsConfig)
}

func (s *Server) onJournalFinished(c *Conn) {
	go func() {
		client, err := newStandaloneRelay(s.cfg.RelayEndpoints[0], s.relayTLSConfig)
		if err != nil {
			s.log.Entry("server").WithError(err).Warn("journal replay: could not reach relay, journal retained")
			return
		}
		defer client.Close()

		if err := replayJournal(c.journalPath, client); err != nil {
			s.log.Entry("server").WithError(err).Warn("journal replay failed, journal retained")
		}
	}()
}

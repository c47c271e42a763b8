package server

import (
	"context"
	"crypto/tls"
	"time"

	relaytransport "github.com/mustafacco7/sudoauditd/internal/relay"
	journalsink "github.com/mustafacco7/sudoauditd/internal/sink/journal"
)

func newStandaloneRelay(addr string, tlsConfig *tls.Config) (*relaytransport.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return relaytransport.Dial(ctx, "tcp", addr, tlsConfig)
}

func replayJournal(path string, client *relaytransport.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return journalsink.Replay(ctx, path, client)
}

// Shutdown sets every active connection's state to SHUTDOWN and
// schedules an immediate commit point for connections doing local I/O
// logging, then waits up to cfg.ShutdownTimeout for everyone to drain
// before returning — after which any stragglers are abandoned to OS
// socket teardown, matching the "arm a global timer, then stop waiting"
// behavior spec.md §4.8 describes for the event-loop original.
func (s *Server) Shutdown() {
	s.mu.Lock()
	for _, ln := range s.listeners {
		_ = ln.Close()
	}
	s.listeners = nil

	for c := range s.conns {
		c.machine.Shutdown()

		switch c.sinkKind {
		case sinkRelay:
			_ = c.relayClient.Close()
		case sinkLocal, sinkJournal:
			if c.machine.LogIO() || c.sinkKind == sinkJournal {
				c.sched.Immediate()
			} else {
				_ = c.netConn.Close()
			}
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.cfg.ShutdownTimeout):
		s.log.Entry("server").Warn("shutdown timeout elapsed, abandoning remaining connections")
	}
}

// Reload applies cfg (already re-read by the caller), frees and
// recreates every listener,
// and leaves existing connections untouched (they continue running
// under the configuration they were constructed with).
func (s *Server) Reload(ctx context.Context, cfg Config) error {
	s.mu.Lock()
	old := s.listeners
	s.listeners = nil
	s.mu.Unlock()

	for _, ln := range old {
		_ = ln.Close()
	}

	s.mu.Lock()
	s.cfg = cfg
	s.relayTLSConfig = cfg.RelayTLSConfig
	s.mu.Unlock()

	return s.startListeners(ctx)
}

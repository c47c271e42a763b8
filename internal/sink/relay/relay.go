// Package relay implements the sink that forwards every inbound
// message, re-encoded verbatim, onto an upstream relay connection.
// Commit-point replies flow in the reverse direction and are what the
// client ultimately receives.
package relay

import (
	"context"
	"sync"

	relaytransport "github.com/mustafacco7/sudoauditd/internal/relay"
	"github.com/mustafacco7/sudoauditd/internal/wire"
)

// Sink forwards to an already-connected relay.Client.
type Sink struct {
	mu      sync.Mutex
	client  *relaytransport.Client
	elapsed wire.TimeSpec
}

// New wraps an established relay client.
func New(client *relaytransport.Client) *Sink {
	return &Sink{client: client}
}

// Client exposes the underlying transport so the connection's commit
// scheduler can subscribe to the relay's own commit points instead of
// arming a local timer (spec invariant: a relay's commit points are
// authoritative).
func (s *Sink) Client() *relaytransport.Client { return s.client }

func (s *Sink) Accept(ctx context.Context, m wire.Accept) (string, error) {
	return "", s.client.Send(m)
}

func (s *Sink) Reject(ctx context.Context, m wire.Reject) error {
	return s.client.Send(m)
}

func (s *Sink) Exit(ctx context.Context, m wire.Exit) error {
	s.mu.Lock()
	s.elapsed = m.RunTime
	s.mu.Unlock()

	return s.client.Send(m)
}

func (s *Sink) Restart(ctx context.Context, m wire.Restart) error {
	return s.client.Send(m)
}

func (s *Sink) Alert(ctx context.Context, m wire.Alert) error {
	return s.client.Send(m)
}

func (s *Sink) IoBuf(ctx context.Context, m wire.IoBuffer) error {
	s.mu.Lock()
	s.elapsed = m.Delay
	s.mu.Unlock()

	return s.client.Send(m)
}

func (s *Sink) WinSize(ctx context.Context, m wire.ChangeWindowSize) error {
	return s.client.Send(m)
}

func (s *Sink) Suspend(ctx context.Context, m wire.CommandSuspend) error {
	return s.client.Send(m)
}

func (s *Sink) Elapsed() wire.TimeSpec {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.elapsed
}

func (s *Sink) Close() error {
	return s.client.Close()
}

// Package journal implements the store-and-forward sink: every inbound
// message is appended to a per-connection journal file, framed
// identically to the wire protocol, before the session is ever relayed.
// Once the client stream reaches FINISHED, Replay reparents the journal
// file into a relay-only connection and forwards it upstream.
package journal

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/mustafacco7/sudoauditd/internal/relay"
	"github.com/mustafacco7/sudoauditd/internal/wire"
)

// Sink appends every message it sees to an on-disk journal file.
type Sink struct {
	mu      sync.Mutex
	path    string
	fh      *os.File
	elapsed wire.TimeSpec
}

// Create opens a fresh journal file at path.
func Create(path string, mode os.FileMode) (*Sink, error) {
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return nil, fmt.Errorf("journal: create: %w", err)
	}
	return &Sink{path: path, fh: fh}, nil
}

// Path returns the journal file's location, needed by the lifecycle
// controller to hand off ownership once the session finishes.
func (s *Sink) Path() string { return s.path }

func (s *Sink) append(m wire.Message) error {
	body, err := wire.Pack(m)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	frame, err := wire.Encode(nil, body)
	if err != nil {
		return err
	}

	_, err = s.fh.Write(frame)
	return err
}

func (s *Sink) Accept(ctx context.Context, m wire.Accept) (string, error) {
	return "", s.append(m)
}

func (s *Sink) Reject(ctx context.Context, m wire.Reject) error {
	return s.append(m)
}

func (s *Sink) Exit(ctx context.Context, m wire.Exit) error {
	s.mu.Lock()
	s.elapsed = m.RunTime
	s.mu.Unlock()

	return s.append(m)
}

func (s *Sink) Restart(ctx context.Context, m wire.Restart) error {
	return s.append(m)
}

func (s *Sink) Alert(ctx context.Context, m wire.Alert) error {
	return s.append(m)
}

func (s *Sink) IoBuf(ctx context.Context, m wire.IoBuffer) error {
	s.mu.Lock()
	s.elapsed = m.Delay
	s.mu.Unlock()

	return s.append(m)
}

func (s *Sink) WinSize(ctx context.Context, m wire.ChangeWindowSize) error {
	return s.append(m)
}

func (s *Sink) Suspend(ctx context.Context, m wire.CommandSuspend) error {
	return s.append(m)
}

func (s *Sink) Elapsed() wire.TimeSpec {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.elapsed
}

// Close releases the journal file descriptor without removing it from
// disk; callers decide retention via Replay's outcome.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.fh.Close()
}

// Replay reads a finished journal file from disk and forwards every
// framed record to client, in order. On the relay's acknowledgment
// (its first CommitPoint reply after the final message), the journal
// file is unlinked; on any error it is left on disk for a later retry.
func Replay(ctx context.Context, path string, client *relay.Client) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("journal: read %s: %w", path, err)
	}

	for len(data) > 0 {
		body, consumed, ok, derr := wire.Decode(data)
		if derr != nil {
			return fmt.Errorf("journal: corrupt record in %s: %w", path, derr)
		}
		if !ok {
			return fmt.Errorf("journal: truncated record in %s", path)
		}

		m, uerr := wire.Unpack(body)
		if uerr != nil {
			return fmt.Errorf("journal: unpack record in %s: %w", path, uerr)
		}

		if err := client.Send(m); err != nil {
			return fmt.Errorf("journal: replay to relay: %w", err)
		}

		data = data[consumed:]
	}

	select {
	case _, ok := <-client.Commits:
		if !ok {
			return fmt.Errorf("journal: relay closed before acknowledging replay")
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	return os.Remove(path)
}

// Package local implements the sink that persists a session's events
// and I/O buffers straight to disk: the default destination when no
// relay is configured.
package local

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	fileperm "github.com/mustafacco7/sudoauditd/pkg/file/perm"

	"github.com/mustafacco7/sudoauditd/internal/eventlog"
	"github.com/mustafacco7/sudoauditd/internal/iolog"
	"github.com/mustafacco7/sudoauditd/internal/wire"
)

// Sink persists events to an eventlog.Writer and, when the session
// requested it, I/O buffers to an iolog.Dir.
type Sink struct {
	mu sync.Mutex

	eventRoot string
	ioRoot    string
	eventMode fileperm.Perm

	events *eventlog.Writer
	io     *iolog.Dir

	logID   string
	elapsed wire.TimeSpec

	// dropProbability, when > 0, causes IoBuf to fail a uniform
	// fraction of calls: a debugging aid for exercising client
	// restart under induced connection loss.
	dropProbability float64
	rng             *rand.Rand
}

// Options configures a Sink.
type Options struct {
	EventRoot       string
	IORoot          string
	EventFileMode   fileperm.Perm
	DropProbability float64
}

// New constructs a Sink. No files are created until Accept or Reject is
// called.
func New(opt Options) *Sink {
	return &Sink{
		eventRoot:       opt.EventRoot,
		ioRoot:          opt.IORoot,
		eventMode:       opt.EventFileMode,
		dropProbability: opt.DropProbability,
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Sink) newLogID() string {
	now := time.Now().UTC()
	return filepath.Join(now.Format("2006/01/02"), uuid.NewString())
}

// Accept opens the session's event log, and when expectIOBufs is set,
// its I/O log directory too. The returned log ID becomes the LogId
// reply's payload.
func (s *Sink) Accept(ctx context.Context, m wire.Accept) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logID = s.newLogID()

	path := filepath.Join(s.eventRoot, s.logID+".log")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("local: create event log directory: %w", err)
	}

	ev, err := eventlog.Open(path, s.eventMode.FileMode())
	if err != nil {
		return "", fmt.Errorf("local: open event log: %w", err)
	}
	s.events = ev

	if err := s.events.Accept(m.Info); err != nil {
		return "", err
	}

	if !m.ExpectIOBufs {
		return "", nil
	}

	dir, err := iolog.Create(s.ioRoot, s.logID)
	if err != nil {
		return "", err
	}
	s.io = dir

	return s.logID, nil
}

// Reject appends the reject event; no I/O log is ever created.
func (s *Sink) Reject(ctx context.Context, m wire.Reject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.events == nil {
		path := filepath.Join(s.eventRoot, s.newLogID()+".log")
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return fmt.Errorf("local: create event log directory: %w", err)
		}
		ev, err := eventlog.Open(path, s.eventMode.FileMode())
		if err != nil {
			return err
		}
		s.events = ev
	}

	return s.events.Reject(m.Reason, m.Info)
}

// Exit appends the exit event and, on a logging connection, clears the
// timing file's write bits to mark the I/O log complete.
func (s *Sink) Exit(ctx context.Context, m wire.Exit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.elapsed = m.RunTime

	if err := s.events.Exit(m.ExitValue); err != nil {
		return err
	}

	if s.io != nil {
		return s.io.Finish()
	}
	return nil
}

// Restart reopens an existing I/O log by identifier.
func (s *Sink) Restart(ctx context.Context, m wire.Restart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := iolog.Reopen(s.ioRoot, m.LogID)
	if err != nil {
		return err
	}

	s.logID = m.LogID
	s.io = dir
	s.elapsed = m.ResumePoint
	return nil
}

// Alert appends an alert event.
func (s *Sink) Alert(ctx context.Context, m wire.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.events.Alert(m.Reason, m.Info)
}

// IoBuf writes one I/O chunk, unless random-drop testing is enabled and
// the toss comes up a drop.
func (s *Sink) IoBuf(ctx context.Context, m wire.IoBuffer) error {
	if s.dropProbability > 0 && s.rng.Float64() < s.dropProbability {
		return fmt.Errorf("local: io buffer dropped (random-drop testing)")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.elapsed = m.Delay

	if s.io == nil {
		return fmt.Errorf("local: io buffer received without an open io log")
	}
	return s.io.Write(m)
}

// WinSize persists nothing; the session layer arms the commit timer
// for it, which is its only effect.
func (s *Sink) WinSize(ctx context.Context, m wire.ChangeWindowSize) error {
	return nil
}

// Suspend mirrors WinSize: no dedicated persistence, only a commit-timer
// trigger at the session layer.
func (s *Sink) Suspend(ctx context.Context, m wire.CommandSuspend) error {
	return nil
}

// Elapsed returns the last durable elapsed time.
func (s *Sink) Elapsed() wire.TimeSpec {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.elapsed
}

// Close releases the event log and I/O log file descriptors.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var first error
	if s.events != nil {
		if err := s.events.Close(); err != nil {
			first = err
		}
	}
	if s.io != nil {
		if err := s.io.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

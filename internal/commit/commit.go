// Package commit implements the per-connection commit-point scheduler:
// a timer that periodically acknowledges the durable offset of a
// session's I/O stream.
package commit

import (
	"sync"
	"time"

	"github.com/mustafacco7/sudoauditd/internal/wire"
)

// Elapsed is consulted each time the timer fires to build the
// CommitPoint reply.
type Elapsed interface {
	Elapsed() wire.TimeSpec
}

// Sender enqueues the CommitPoint reply on the connection's write
// queue.
type Sender interface {
	Send(m wire.Message) error
}

// Fired is notified every time a commit point is actually emitted, so
// the session machine can apply the EXITED -> FINISHED transition when
// appropriate. It returns true when this was the session's final
// commit point, in which case the scheduler stops rearming.
type Fired interface {
	CommitFired() (final bool)
}

// Scheduler is a per-connection timer armed on the first payload-bearing
// message of a session and rearmed after every fire, until Stop is
// called or a fire reports itself final.
type Scheduler struct {
	mu     sync.Mutex
	period time.Duration
	source Elapsed
	out    Sender
	fired  Fired

	timer   *time.Timer
	armed   bool
	stopped bool

	done     chan struct{}
	doneOnce sync.Once
}

// New returns a Scheduler that has not yet been armed. fired may be nil
// at construction and supplied later via SetFired, since the session
// machine that implements Fired typically needs this same scheduler as
// its CommitArmer — a circular construction resolved by wiring the
// back-reference after both exist.
func New(period time.Duration, source Elapsed, out Sender, fired Fired) *Scheduler {
	return &Scheduler{period: period, source: source, out: out, fired: fired, done: make(chan struct{})}
}

// SetFired wires the Fired callback after construction.
func (s *Scheduler) SetFired(fired Fired) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fired = fired
}

// Done returns a channel closed once a fire reports itself final. A
// connection in the Exited state blocks on Done to know when the
// commit scheduler has emitted the session's last CommitPoint and it
// is safe to close.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Arm starts the timer if it is not already running. It is safe to call
// on every payload-bearing message; only the first call after
// construction or after a fire has any effect.
func (s *Scheduler) Arm() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.armed || s.stopped {
		return
	}

	s.armed = true
	s.timer = time.AfterFunc(s.period, s.fire)
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.armed = false
	s.mu.Unlock()

	_ = s.out.Send(wire.CommitPoint{Elapsed: s.source.Elapsed()})

	s.mu.Lock()
	fired := s.fired
	s.mu.Unlock()

	if fired != nil && fired.CommitFired() {
		s.Stop()
		s.doneOnce.Do(func() { close(s.done) })
		return
	}

	s.Arm()
}

// Stop cancels any pending timer and prevents further rearming.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.doneOnce.Do(func() { close(s.done) })
}

// Immediate fires the scheduler once, out of band, without waiting for
// the period to elapse. Used by the lifecycle controller's shutdown
// sweep, which schedules an immediate commit-point for connections
// doing local I/O logging.
func (s *Scheduler) Immediate() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.armed = false
	s.mu.Unlock()

	s.fire()
}

// noop is the CommitArmer used by session.Machine when a relay is
// attached: invariant 3 says the timer is armed only when no relay
// exists, so the relay's own commit points are echoed instead.
type noop struct{}

func (noop) Arm() {}

// Noop is the shared no-op armer for relay-backed connections.
var Noop = noop{}

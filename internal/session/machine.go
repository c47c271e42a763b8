// Package session implements the per-connection state machine and
// message dispatch: state as a discriminated union (state.go), legality
// checking per message kind, and routing accepted messages to the
// connection's bound sink.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/mustafacco7/sudoauditd/internal/apperr"
	"github.com/mustafacco7/sudoauditd/internal/sink"
	"github.com/mustafacco7/sudoauditd/internal/wire"
)

var errIllegalMessage = apperr.ErrSessionIllegalMessage.Message()

// Sender enqueues an outbound reply on the connection's write queue. It
// is implemented by the transport layer (internal/server), which owns
// the actual socket and write goroutine.
type Sender interface {
	Send(m wire.Message) error
}

// CommitArmer arms the connection's commit-point timer. Implemented by
// internal/commit.Scheduler; a no-op implementation is used when a
// relay is attached, since invariant 3 says the timer is armed only
// when no relay exists.
type CommitArmer interface {
	Arm()
}

// Machine drives one connection's state and dispatches legal messages
// to its bound sink. It is not safe for concurrent Dispatch calls from
// multiple goroutines, matching the connection's single reader
// goroutine; Shutdown may be called from any goroutine.
type Machine struct {
	mu sync.Mutex

	state State
	sink  sink.Table
	out   Sender
	armer CommitArmer

	logIO      bool
	storeFirst bool
	hasRelay   bool
}

// Options configures a new Machine.
type Options struct {
	Sink       sink.Table
	Out        Sender
	Armer      CommitArmer
	StoreFirst bool
	HasRelay   bool
}

// New returns a Machine in the Initial state.
func New(opt Options) *Machine {
	return &Machine{
		state:      Initial,
		sink:       opt.Sink,
		out:        opt.Out,
		armer:      opt.Armer,
		storeFirst: opt.StoreFirst,
		hasRelay:   opt.HasRelay,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// LogIO reports whether this session is writing a replayable I/O log.
func (m *Machine) LogIO() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.logIO
}

func (m *Machine) fail(reason string) error {
	m.state = NewError(reason)
	return fmt.Errorf("session: %s", reason)
}

// Dispatch validates msg against the current state, routes it to the
// bound sink on success, and applies the resulting transition. A
// non-nil error means the machine has moved to the Error state; the
// caller is expected to send an Error reply and close the connection.
func (m *Machine) Dispatch(ctx context.Context, msg wire.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch v := msg.(type) {
	case wire.ClientHello:
		return nil

	case wire.Accept:
		if _, ok := m.state.(stateInitial); !ok {
			return m.fail(errIllegalMessage)
		}

		logID, err := m.sink.Accept(ctx, v)
		if err != nil {
			return m.fail("accept failed: " + err.Error())
		}

		if v.ExpectIOBufs {
			m.logIO = true
			if err := m.out.Send(wire.LogId{ID: logID}); err != nil {
				return m.fail("write failed: " + err.Error())
			}
		}

		m.state = Running
		return nil

	case wire.Reject:
		if _, ok := m.state.(stateInitial); !ok {
			return m.fail(errIllegalMessage)
		}

		if err := m.sink.Reject(ctx, v); err != nil {
			return m.fail("reject failed: " + err.Error())
		}

		m.state = Finished
		return nil

	case wire.Restart:
		if _, ok := m.state.(stateInitial); !ok {
			return m.fail(errIllegalMessage)
		}

		if err := m.sink.Restart(ctx, v); err != nil {
			return m.fail("restart failed: " + err.Error())
		}

		m.state = Running
		return nil

	case wire.Exit:
		if _, ok := m.state.(stateRunning); !ok {
			return m.fail(errIllegalMessage)
		}

		if err := m.sink.Exit(ctx, v); err != nil {
			return m.fail("exit failed: " + err.Error())
		}

		if m.logIO && !m.hasRelay {
			m.state = Exited
		} else {
			m.state = Finished
		}
		return nil

	case wire.Alert:
		if _, ok := m.state.(stateRunning); !ok {
			return m.fail(errIllegalMessage)
		}
		if err := m.sink.Alert(ctx, v); err != nil {
			return m.fail("alert failed: " + err.Error())
		}
		return nil

	case wire.IoBuffer:
		if _, ok := m.state.(stateRunning); !ok {
			return m.fail(errIllegalMessage)
		}
		if err := m.sink.IoBuf(ctx, v); err != nil {
			return m.fail("io buffer failed: " + err.Error())
		}
		m.armCommit()
		return nil

	case wire.ChangeWindowSize:
		if _, ok := m.state.(stateRunning); !ok {
			return m.fail(errIllegalMessage)
		}
		if err := m.sink.WinSize(ctx, v); err != nil {
			return m.fail("window size failed: " + err.Error())
		}
		m.armCommit()
		return nil

	case wire.CommandSuspend:
		if _, ok := m.state.(stateRunning); !ok {
			return m.fail(errIllegalMessage)
		}
		if err := m.sink.Suspend(ctx, v); err != nil {
			return m.fail("suspend failed: " + err.Error())
		}
		m.armCommit()
		return nil

	default:
		return m.fail(fmt.Sprintf("unexpected message kind %T", msg))
	}
}

func (m *Machine) armCommit() {
	if m.hasRelay || m.armer == nil {
		return
	}
	m.armer.Arm()
}

// CommitFired is called by the commit scheduler each time it emits a
// CommitPoint. It reports whether this was the session's final commit
// point: true exactly when the machine was in Exited, in which case it
// also performs the Exited -> Finished transition.
func (m *Machine) CommitFired() (final bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.(stateExited); ok {
		m.state = Finished
		return true
	}
	return false
}

// Shutdown forces the machine into Shutdown from any state. It is only
// ever called by the lifecycle controller.
func (m *Machine) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = Shutdown
}

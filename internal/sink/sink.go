// Package sink defines the capability interface bound once per
// connection at construction and never switched at runtime. Three
// concrete implementations exist: local (sink/local), relay
// (sink/relay), and journal (sink/journal).
package sink

import (
	"context"

	"github.com/mustafacco7/sudoauditd/internal/wire"
)

// Table is the pluggable destination for every message kind a
// connection may dispatch. Exactly one Table is bound per connection.
type Table interface {
	Accept(ctx context.Context, m wire.Accept) (logID string, err error)
	Reject(ctx context.Context, m wire.Reject) error
	Exit(ctx context.Context, m wire.Exit) error
	Restart(ctx context.Context, m wire.Restart) error
	Alert(ctx context.Context, m wire.Alert) error
	IoBuf(ctx context.Context, m wire.IoBuffer) error
	WinSize(ctx context.Context, m wire.ChangeWindowSize) error
	Suspend(ctx context.Context, m wire.CommandSuspend) error

	// Elapsed returns the last durable elapsed time, consulted by the
	// commit-point scheduler when it fires.
	Elapsed() wire.TimeSpec

	// Close releases any resource the sink owns (files, directories,
	// the outbound relay connection). It is called exactly once, on
	// connection teardown.
	Close() error
}

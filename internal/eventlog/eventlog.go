// Package eventlog formats the structured, human-readable audit record
// for a session: the accept/reject/alert/exit events the local sink
// appends as a session progresses.
package eventlog

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/mustafacco7/sudoauditd/internal/wire"
)

// Event is one JSON-line record appended to a session's event log.
type Event struct {
	Time   time.Time       `json:"time"`
	Kind   string          `json:"kind"`
	Info   []wire.InfoPair `json:"info,omitempty"`
	Reason string          `json:"reason,omitempty"`
	Exit   *int32          `json:"exit,omitempty"`
}

// Writer appends Events to a single on-disk file, one JSON object per
// line. It is not safe to share across sessions; each connection owns
// its own Writer for the duration of one session.
type Writer struct {
	mu sync.Mutex
	fh *os.File
	enc *json.Encoder
}

// Open creates (or appends to) the event log file at path.
func Open(path string, mode os.FileMode) (*Writer, error) {
	fh, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, mode)
	if err != nil {
		return nil, err
	}

	return &Writer{fh: fh, enc: json.NewEncoder(fh)}, nil
}

func (w *Writer) append(e Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	e.Time = e.Time.UTC()
	return w.enc.Encode(e)
}

// Accept appends the session's accept event, carrying the submitted
// info list verbatim (the core never interprets its contents).
func (w *Writer) Accept(info []wire.InfoPair) error {
	return w.append(Event{Kind: "accept", Info: info})
}

// Reject appends the session's reject event.
func (w *Writer) Reject(reason string, info []wire.InfoPair) error {
	return w.append(Event{Kind: "reject", Reason: reason, Info: info})
}

// Alert appends an out-of-band alert event.
func (w *Writer) Alert(reason string, info []wire.InfoPair) error {
	return w.append(Event{Kind: "alert", Reason: reason, Info: info})
}

// Exit appends the session's completion event.
func (w *Writer) Exit(code int32) error {
	c := code
	return w.append(Event{Kind: "exit", Exit: &c})
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.fh.Close()
}

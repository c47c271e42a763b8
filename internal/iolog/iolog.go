// Package iolog writes a session's replayable I/O timing stream: a
// directory holding one file per I/O stream (tty-in, tty-out, stdin,
// stdout, stderr) plus a timing file recording inter-chunk delays.
package iolog

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	fileperm "github.com/mustafacco7/sudoauditd/pkg/file/perm"

	"github.com/mustafacco7/sudoauditd/internal/wire"
)

// DefaultDirMode and DefaultFileMode are applied to newly created I/O
// log directories and files; the timing file additionally loses its
// write bits once the session completes (see Dir.Finish).
const (
	DefaultDirMode  fileperm.Perm = 0700
	DefaultFileMode fileperm.Perm = 0600
)

var streamNames = map[wire.StreamID]string{
	wire.StreamTTYIn:  "ttyin",
	wire.StreamTTYOut: "ttyout",
	wire.StreamStdin:  "stdin",
	wire.StreamStdout: "stdout",
	wire.StreamStderr: "stderr",
}

// Dir owns the on-disk directory tree for one session's I/O log: the
// timing file and a lazily-opened file per stream actually used.
type Dir struct {
	mu      sync.Mutex
	root    string
	timing  *os.File
	streams map[wire.StreamID]*os.File
}

// Create builds a fresh I/O log directory under root/id and opens its
// timing file. The caller keeps id, which is what a LogId reply carries
// back to the client.
func Create(root, id string) (*Dir, error) {
	dir := filepath.Join(root, id)

	if err := os.MkdirAll(dir, DefaultDirMode.FileMode()); err != nil {
		return nil, fmt.Errorf("iolog: create directory: %w", err)
	}

	timing, err := os.OpenFile(filepath.Join(dir, "timing"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, DefaultFileMode.FileMode())
	if err != nil {
		return nil, fmt.Errorf("iolog: create timing file: %w", err)
	}

	return &Dir{
		root:    dir,
		timing:  timing,
		streams: make(map[wire.StreamID]*os.File),
	}, nil
}

// Reopen reattaches to an existing I/O log directory for Restart.
func Reopen(root, id string) (*Dir, error) {
	dir := filepath.Join(root, id)

	timing, err := os.OpenFile(filepath.Join(dir, "timing"), os.O_APPEND|os.O_WRONLY, DefaultFileMode.FileMode())
	if err != nil {
		return nil, fmt.Errorf("iolog: reopen timing file: %w", err)
	}

	return &Dir{
		root:    dir,
		timing:  timing,
		streams: make(map[wire.StreamID]*os.File),
	}, nil
}

// Write appends one I/O chunk: the raw bytes to the stream's own file,
// then a timing-file record (stream, delay, length).
func (d *Dir) Write(m wire.IoBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sf, err := d.streamFile(m.Stream)
	if err != nil {
		return err
	}

	if _, err := sf.Write(m.Data); err != nil {
		return fmt.Errorf("iolog: write stream %d: %w", m.Stream, err)
	}

	var rec [20]byte
	binary.BigEndian.PutUint32(rec[0:4], uint32(m.Stream))
	binary.BigEndian.PutUint64(rec[4:12], uint64(m.Delay.Sec))
	binary.BigEndian.PutUint32(rec[12:16], uint32(m.Delay.Nsec))
	binary.BigEndian.PutUint32(rec[16:20], uint32(len(m.Data)))

	if _, err := d.timing.Write(rec[:]); err != nil {
		return fmt.Errorf("iolog: write timing record: %w", err)
	}

	return nil
}

func (d *Dir) streamFile(id wire.StreamID) (*os.File, error) {
	if sf, ok := d.streams[id]; ok {
		return sf, nil
	}

	name, ok := streamNames[id]
	if !ok {
		return nil, fmt.Errorf("iolog: unknown stream id %d", id)
	}

	sf, err := os.OpenFile(filepath.Join(d.root, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, DefaultFileMode.FileMode())
	if err != nil {
		return nil, fmt.Errorf("iolog: open stream %s: %w", name, err)
	}

	d.streams[id] = sf
	return sf, nil
}

// Finish clears the timing file's write bits (user, group, and other),
// marking the session as complete on disk. It does not close the file;
// call Close separately once all writers are done.
func (d *Dir) Finish() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	info, err := d.timing.Stat()
	if err != nil {
		return err
	}

	mode := info.Mode() &^ 0222
	return os.Chmod(d.timing.Name(), mode)
}

// Close releases every file descriptor the directory owns.
func (d *Dir) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var first error
	if err := d.timing.Close(); err != nil {
		first = err
	}
	for _, sf := range d.streams {
		if err := sf.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

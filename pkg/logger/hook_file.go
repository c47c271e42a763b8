/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package logger

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	fileperm "github.com/mustafacco7/sudoauditd/pkg/file/perm"
	loglvl "github.com/mustafacco7/sudoauditd/pkg/logger/level"
)

// hookFile appends formatted records to a single on-disk file, created (or
// reopened) with the given permission mode. One hookFile backs the server's
// main run log; it is independent of the per-session event log and I/O log,
// which own their own file descriptors.
type hookFile struct {
	mu   sync.Mutex
	path string
	perm fileperm.Perm
	fh   *os.File
	lvl  atomic.Uint32
	fmt  logrus.Formatter
}

// AddFile registers a hook appending every record at or above lvl to path,
// created with the given mode if it does not already exist.
func AddFile(l Logger, path string, mode fileperm.Perm, lvl loglvl.Level) error {
	h := &hookFile{
		path: path,
		perm: mode,
		fmt:  &logrus.JSONFormatter{},
	}
	h.lvl.Store(uint32(lvl))

	if err := h.open(); err != nil {
		return err
	}

	AddHook(l, h)
	return nil
}

func (h *hookFile) open() error {
	fh, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, h.perm.FileMode())
	if err != nil {
		return err
	}

	h.fh = fh
	return nil
}

func (h *hookFile) SetLevel(lvl loglvl.Level) {
	h.lvl.Store(uint32(lvl))
}

func (h *hookFile) Levels() []logrus.Level {
	lvl := loglvl.Level(h.lvl.Load())

	out := make([]logrus.Level, 0, int(lvl)+1)
	for l := loglvl.PanicLevel; l <= lvl && l != loglvl.NilLevel; l++ {
		out = append(out, l.Logrus())
	}

	return out
}

func (h *hookFile) Fire(e *logrus.Entry) error {
	p, err := h.fmt.Format(e)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.fh == nil {
		if err = h.open(); err != nil {
			return err
		}
	}

	_, err = h.fh.Write(p)
	return err
}

// Reopen closes and reopens the underlying file, so that after external log
// rotation (renaming the file out from under us) writes go to a new file at
// path. The SIGHUP reload in cmd/sudoauditd does not call it.
func (h *hookFile) Reopen() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.fh != nil {
		_ = h.fh.Close()
		h.fh = nil
	}

	return h.open()
}

func (h *hookFile) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.fh == nil {
		return nil
	}

	err := h.fh.Close()
	h.fh = nil
	return err
}

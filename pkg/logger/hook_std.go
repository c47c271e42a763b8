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
	"io"
	"sync"
	"sync/atomic"

	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"

	loglvl "github.com/mustafacco7/sudoauditd/pkg/logger/level"
)

// hookStd writes to stdout or stderr through go-colorable, so that ANSI
// color codes from the text formatter survive on Windows consoles too.
type hookStd struct {
	mu  sync.Mutex
	out io.Writer
	lvl atomic.Uint32
	fmt logrus.Formatter
}

func newHookStd(out io.Writer, lvl loglvl.Level) *hookStd {
	h := &hookStd{
		out: out,
		fmt: &logrus.TextFormatter{FullTimestamp: true},
	}
	h.lvl.Store(uint32(lvl))

	return h
}

// AddStdout registers a hook mirroring every record at or above lvl to stdout.
func AddStdout(l Logger, lvl loglvl.Level) {
	AddHook(l, newHookStd(colorable.NewColorableStdout(), lvl))
}

// AddStderr registers a hook mirroring every record at or above lvl to stderr.
func AddStderr(l Logger, lvl loglvl.Level) {
	AddHook(l, newHookStd(colorable.NewColorableStderr(), lvl))
}

func (h *hookStd) SetLevel(lvl loglvl.Level) {
	h.lvl.Store(uint32(lvl))
}

func (h *hookStd) Levels() []logrus.Level {
	lvl := loglvl.Level(h.lvl.Load())

	out := make([]logrus.Level, 0, int(lvl)+1)
	for l := loglvl.PanicLevel; l <= lvl && l != loglvl.NilLevel; l++ {
		out = append(out, l.Logrus())
	}

	return out
}

func (h *hookStd) Fire(e *logrus.Entry) error {
	p, err := h.fmt.Format(e)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err = h.out.Write(p)
	return err
}

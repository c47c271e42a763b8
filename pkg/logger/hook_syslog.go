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
	"log/syslog"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	loglvl "github.com/mustafacco7/sudoauditd/pkg/logger/level"
)

// hookSyslog forwards records to the local or a remote syslog daemon,
// mapping our Level to the nearest syslog priority.
type hookSyslog struct {
	mu  sync.Mutex
	w   *syslog.Writer
	lvl atomic.Uint32
}

// AddSyslog dials network/addr (network == "" for the local daemon) and
// registers a hook mirroring every record at or above lvl.
func AddSyslog(l Logger, network, addr, tag string, lvl loglvl.Level) error {
	w, err := syslog.Dial(network, addr, syslog.LOG_INFO|syslog.LOG_DAEMON, tag)
	if err != nil {
		return err
	}

	h := &hookSyslog{w: w}
	h.lvl.Store(uint32(lvl))

	AddHook(l, h)
	return nil
}

func (h *hookSyslog) SetLevel(lvl loglvl.Level) {
	h.lvl.Store(uint32(lvl))
}

func (h *hookSyslog) Levels() []logrus.Level {
	lvl := loglvl.Level(h.lvl.Load())

	out := make([]logrus.Level, 0, int(lvl)+1)
	for l := loglvl.PanicLevel; l <= lvl && l != loglvl.NilLevel; l++ {
		out = append(out, l.Logrus())
	}

	return out
}

func (h *hookSyslog) Fire(e *logrus.Entry) error {
	line := e.Message
	if len(e.Data) > 0 {
		if f, err := (&logrus.JSONFormatter{}).Format(e); err == nil {
			line = string(f)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	switch e.Level {
	case logrus.PanicLevel, logrus.FatalLevel:
		return h.w.Crit(line)
	case logrus.ErrorLevel:
		return h.w.Err(line)
	case logrus.WarnLevel:
		return h.w.Warning(line)
	case logrus.InfoLevel:
		return h.w.Info(line)
	default:
		return h.w.Debug(line)
	}
}

func (h *hookSyslog) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.w.Close()
}

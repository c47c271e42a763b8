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

// Package logger provides the structured logging facade used across the
// server: a logrus.Logger wired with one hook per configured destination
// (stdout, stderr, file, syslog), plus a source/function fields helper
// matching the entry conventions used by the event log and the connection
// state machine.
package logger

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	loglvl "github.com/mustafacco7/sudoauditd/pkg/logger/level"
)

// Logger is the logging facade handed to every collaborator (listener,
// connection, sinks, commit scheduler). It is safe for concurrent use.
type Logger interface {
	// WithField returns a derived entry carrying an extra structured field.
	WithField(key string, val interface{}) *logrus.Entry
	// WithFields returns a derived entry carrying a set of structured fields.
	WithFields(fields logrus.Fields) *logrus.Entry
	// Entry returns the base entry, conventionally tagged with the calling
	// function name the way the original project swaps source/__func__.
	Entry(source string) *logrus.Entry

	SetLevel(lvl loglvl.Level)
	GetLevel() loglvl.Level

	io.Closer
}

type logger struct {
	mu  sync.Mutex
	log *logrus.Logger
	lvl loglvl.Level
}

// New builds a Logger with no hooks registered; the caller attaches hooks
// via AddHook before use (see AddStdout, AddStderr, AddFile, AddSyslog).
func New() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.TraceLevel)

	return &logger{
		log: l,
		lvl: loglvl.InfoLevel,
	}
}

func (o *logger) WithField(key string, val interface{}) *logrus.Entry {
	return o.log.WithField(key, val)
}

func (o *logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return o.log.WithFields(fields)
}

func (o *logger) Entry(source string) *logrus.Entry {
	if source == "" {
		return logrus.NewEntry(o.log)
	}

	return o.log.WithField("source", source)
}

func (o *logger) SetLevel(lvl loglvl.Level) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.lvl = lvl

	for _, h := range o.log.Hooks {
		for _, hk := range h {
			if s, k := hk.(interface{ SetLevel(loglvl.Level) }); k {
				s.SetLevel(lvl)
			}
		}
	}
}

func (o *logger) GetLevel() loglvl.Level {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.lvl
}

// AddHook registers a logrus hook (one of the hook* constructors below, or
// any third-party logrus.Hook) on the underlying logger.
func (o *logger) addHook(h logrus.Hook) {
	o.log.AddHook(h)
}

func (o *logger) Close() error {
	var err error

	for _, h := range o.log.Hooks {
		for _, hk := range h {
			if c, k := hk.(io.Closer); k {
				if e := c.Close(); e != nil {
					err = e
				}
			}
		}
	}

	return err
}

// AddHook exposes hook registration without reaching into the concrete type.
func AddHook(l Logger, h logrus.Hook) {
	if lg, ok := l.(*logger); ok {
		lg.addHook(h)
	}
}

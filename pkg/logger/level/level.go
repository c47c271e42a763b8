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

// Package level defines the severity scale shared by every log hook.
package level

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Level is ordered from most severe (PanicLevel=0) to least severe (DebugLevel=5).
// NilLevel (6) is a special value that disables logging.
type Level uint8

const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
	NilLevel
)

func (l Level) Uint8() uint8 { return uint8(l) }
func (l Level) Int() int     { return int(l) }

func (l Level) String() string {
	//nolint exhaustive
	switch l {
	case PanicLevel:
		return "Critical"
	case FatalLevel:
		return "Fatal"
	case ErrorLevel:
		return "Error"
	case WarnLevel:
		return "Warning"
	case InfoLevel:
		return "Info"
	case DebugLevel:
		return "Debug"
	case NilLevel:
		return ""
	}

	return "unknown"
}

// Logrus converts the Level to its logrus equivalent. NilLevel maps to a
// level below logrus.PanicLevel so nothing is ever emitted.
func (l Level) Logrus() logrus.Level {
	//nolint exhaustive
	switch l {
	case PanicLevel:
		return logrus.PanicLevel
	case FatalLevel:
		return logrus.FatalLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case WarnLevel:
		return logrus.WarnLevel
	case InfoLevel:
		return logrus.InfoLevel
	case DebugLevel:
		return logrus.DebugLevel
	}

	return logrus.PanicLevel - 1
}

// Parse returns InfoLevel for any unrecognized input.
func Parse(s string) Level {
	switch {
	case strings.EqualFold(PanicLevel.String(), s):
		return PanicLevel
	case strings.EqualFold(FatalLevel.String(), s):
		return FatalLevel
	case strings.EqualFold(ErrorLevel.String(), s):
		return ErrorLevel
	case strings.EqualFold(WarnLevel.String(), s):
		return WarnLevel
	case strings.EqualFold(InfoLevel.String(), s):
		return InfoLevel
	case strings.EqualFold(DebugLevel.String(), s):
		return DebugLevel
	default:
		return InfoLevel
	}
}

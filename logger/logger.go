/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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

// Package logger provides the process-wide, injectable structured logging
// seam used by every core subsystem. It mirrors the shape of
// nabbar/golib/logger (a FuncLog factory handed to constructors, leveled
// Entry-style methods) but is backed directly by sirupsen/logrus rather than
// golib's own multi-hook logger, keeping the ambient stack small while still
// never falling back to the standard library's bare log package.
package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

// FuncLog returns a Logger instance. Constructors across the core accept a
// FuncLog (never a concrete Logger) so logging can be swapped, deferred, or
// left nil without the caller committing to an implementation up front.
type FuncLog func() Logger

// Fields attaches structured context to a log entry, mirroring logrus.Fields.
type Fields map[string]any

// Logger is the leveled logging interface every core package depends on.
// Implementations must be safe for concurrent use.
type Logger interface {
	WithFields(f Fields) Logger

	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)

	// Close releases any resources held by the logger (open files, syslog
	// connections). Called by a subsystem's teardown/dispose path.
	Close() error
}

type logrusLogger struct {
	entry *logrus.Entry
}

// New builds a Logger backed by logrus, writing to w at the given level.
// A nil w defaults to the logrus default (stderr).
func New(level logrus.Level, w io.Writer) Logger {
	l := logrus.New()
	l.SetLevel(level)
	if w != nil {
		l.SetOutput(w)
	}
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

// Discard returns a Logger that drops every entry, for callers that pass
// a nil FuncLog through constructors expecting one.
func Discard() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func (l *logrusLogger) WithFields(f Fields) Logger {
	return &logrusLogger{entry: l.entry.WithFields(logrus.Fields(f))}
}

func (l *logrusLogger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

func (l *logrusLogger) Close() error {
	if c, ok := l.entry.Logger.Out.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NopIfNil returns fn unchanged if non-nil, otherwise a FuncLog that always
// yields a discarding Logger. Every constructor that accepts a FuncLog
// should route it through this so nil is never dereferenced.
func NopIfNil(fn FuncLog) FuncLog {
	if fn != nil {
		return fn
	}
	return func() Logger { return Discard() }
}

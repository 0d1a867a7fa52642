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

package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// NativeCode carries the raw negative return code from the native
// compression library, when an Error originates from compress/native.
// Zero means "no native code attached".
type NativeCode int32

// Error is the typed error returned by every core package. It is comparable
// against a Kind with Is, and unwraps to any wrapped cause via Unwrap so it
// composes with the standard errors.Is/errors.As.
type Error struct {
	kind  Kind
	code  NativeCode
	msg   string
	cause error
	frame runtime.Frame
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

// Kind returns the classification of this error.
func (e *Error) Kind() Kind {
	if e == nil {
		return KindNone
	}
	return e.kind
}

// Code returns the native return code that produced this error, if any.
func (e *Error) Code() NativeCode {
	if e == nil {
		return 0
	}
	return e.code
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Frame returns the call site that created this error.
func (e *Error) Frame() runtime.Frame {
	if e == nil {
		return runtime.Frame{}
	}
	return e.frame
}

func callerFrame(skip int) runtime.Frame {
	pc := make([]uintptr, 1)
	n := runtime.Callers(skip+2, pc)
	if n == 0 {
		return runtime.Frame{}
	}
	frame, _ := runtime.CallersFrames(pc[:n]).Next()
	return frame
}

// New creates an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{
		kind:  kind,
		msg:   fmt.Sprintf(format, args...),
		frame: callerFrame(1),
	}
}

// Wrap creates an Error of the given kind, wrapping cause. If cause is
// already an *Error of the same kind it is returned unchanged so repeated
// wrapping at intermediate layers does not hide the original frame.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	if cause == nil {
		return New(kind, format, args...)
	}
	var existing *Error
	if errors.As(cause, &existing) && existing.kind == kind {
		return existing
	}
	return &Error{
		kind:  kind,
		msg:   fmt.Sprintf(format, args...),
		cause: cause,
		frame: callerFrame(1),
	}
}

// WithCode attaches a native return code to an Error, returning the
// receiver for chaining at the construction site.
func (e *Error) WithCode(code NativeCode) *Error {
	if e == nil {
		return nil
	}
	e.code = code
	return e
}

// Is reports whether err is an *Error of the given Kind. It is the
// idiomatic entry point for callers: errors.Is(err, errors.KindTimeout)
// does not work directly since Kind is not an error; use Is instead.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.kind == kind
	}
	return false
}

// As extracts the *Error from err, mirroring errors.As for callers that
// need the full Error value (code, frame) rather than just the Kind.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

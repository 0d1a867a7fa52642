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

// Package errors provides the typed error vocabulary shared by every core
// subsystem: pipeline, connio, listener, compress and servicestack. Errors
// carry a Kind (one of the nine kinds in the package design), an optional
// native code and a captured call frame, in the spirit of nabbar/golib's
// errors package but scoped to a fixed, closed set of kinds instead of
// free-form HTTP-like codes.
package errors

import "strconv"

// Kind classifies an Error into one of the nine error kinds recognized by
// the core. Kind values are stable and may be compared with ==.
type Kind uint8

const (
	// KindNone marks the zero value; never returned by package constructors.
	KindNone Kind = iota

	// KindInvalidArgument signals malformed input: a nil buffer where size > 0,
	// an out-of-range level, an empty required field.
	KindInvalidArgument

	// KindInvalidState signals an operation attempted on state that is not
	// ready for it: an uninitialized compressor, a closed listener.
	KindInvalidState

	// KindOutOfMemory signals a native or host allocation failure.
	KindOutOfMemory

	// KindNotSupported signals an unsupported compression method or level,
	// or a socket operation unsupported on the current platform.
	KindNotSupported

	// KindOverflow signals integer overflow in compression sizing.
	KindOverflow

	// KindCorrupted signals state corruption reported by the native library;
	// not recoverable.
	KindCorrupted

	// KindTimeout signals a pipeline timer fired on a pending I/O.
	KindTimeout

	// KindCanceled signals cooperative cancellation of a pending operation.
	KindCanceled

	// KindIoError signals a socket error; the underlying error is wrapped.
	KindIoError
)

// String renders the Kind using its symbolic name, for logging and error
// messages.
func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindInvalidState:
		return "invalid_state"
	case KindOutOfMemory:
		return "out_of_memory"
	case KindNotSupported:
		return "not_supported"
	case KindOverflow:
		return "overflow"
	case KindCorrupted:
		return "corrupted"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	case KindIoError:
		return "io_error"
	default:
		return "none(" + strconv.Itoa(int(k)) + ")"
	}
}

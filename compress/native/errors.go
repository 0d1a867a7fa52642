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

// Package native resolves the vnlib_compress (or equivalent) shared library,
// translates its negative return codes into the core's typed errors, and
// exposes a thin, safe façade over its exported function table. It never
// implements a concrete compression algorithm itself.
package native

import (
	liberr "github.com/nabbar/vnhost/errors"
)

// codeTable maps the native library's negative return codes to error kinds,
// verbatim.
var codeTable = map[int64]liberr.Kind{
	-1:  liberr.KindInvalidState,    // invalid pointer
	-2:  liberr.KindOutOfMemory,     // out of memory
	-9:  liberr.KindNotSupported,    // method not supported
	-10: liberr.KindNotSupported,    // level not supported
	-11: liberr.KindInvalidArgument, // invalid input
	-12: liberr.KindInvalidArgument, // invalid output
	-13: liberr.KindCorrupted,       // compression failed
	-14: liberr.KindOverflow,        // compression overflow
	-16: liberr.KindInvalidState,    // gzip invalid state
	-17: liberr.KindOverflow,        // gzip overflow
	-24: liberr.KindInvalidState,    // brotli invalid state
}

// MapReturn translates a native return code into a Go error. A non-negative
// code is treated as success and returns (code, nil); the numeric value
// carries data (bytes read/written/block size, depending on the call).
func MapReturn(code int64) (int64, error) {
	if code >= 0 {
		return code, nil
	}

	kind, ok := codeTable[code]
	if !ok {
		kind = liberr.KindCorrupted
	}

	return code, liberr.New(kind, "native compression library returned code %d", code).WithCode(liberr.NativeCode(code))
}

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

package compress

import "github.com/bits-and-blooms/bitset"

// Method identifies a streaming compression algorithm the native library
// may advertise support for. Values are stable bit positions into the
// bitset returned by GetSupportedMethods.
type Method uint

const (
	MethodGzip Method = iota
	MethodDeflate
	MethodBrotli
	methodCount
)

// String renders the method name as advertised by the native library.
func (m Method) String() string {
	switch m {
	case MethodGzip:
		return "gzip"
	case MethodDeflate:
		return "deflate"
	case MethodBrotli:
		return "brotli"
	default:
		return "unknown"
	}
}

// MethodSet is a bitset over the Method enum. It wraps
// github.com/bits-and-blooms/bitset.BitSet directly, since
// GetSupportedMethods enumerates methods as a bitset rather than a
// hand-rolled bitmask.
type MethodSet struct {
	bits *bitset.BitSet
}

// NewMethodSet builds a MethodSet with the given methods set.
func NewMethodSet(methods ...Method) MethodSet {
	b := bitset.New(uint(methodCount))
	for _, m := range methods {
		b.Set(uint(m))
	}
	return MethodSet{bits: b}
}

// Has reports whether m is present in the set.
func (s MethodSet) Has(m Method) bool {
	if s.bits == nil {
		return false
	}
	return s.bits.Test(uint(m))
}

// Methods returns the set members in bit order.
func (s MethodSet) Methods() []Method {
	if s.bits == nil {
		return nil
	}
	out := make([]Method, 0, methodCount)
	for i := uint(0); i < uint(methodCount); i++ {
		if s.bits.Test(i) {
			out = append(out, Method(i))
		}
	}
	return out
}

// Raw exposes the underlying bitset for callers that want to compose it
// with other bitset operations (union, intersection) directly.
func (s MethodSet) Raw() *bitset.BitSet {
	return s.bits
}

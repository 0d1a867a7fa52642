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

// Package simulator is a pure-Go test double for compress/native.Library.
// It backs the compress package's tests so the commit/decommit state
// machine can be exercised without a real
// vnlib_compress shared library present in the environment. It is never
// wired into native.Open/native.Discover; production code always resolves
// a real shared library via the platform-specific backend.
package simulator

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"io"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/nabbar/vnhost/compress/native"
)

const (
	methodGzip    = int32(0)
	methodDeflate = int32(1)
	methodBrotli  = int32(2)
)

type state struct {
	allocated bool
}

type compressor struct {
	method int32
	level  int32
	buf    *bytes.Buffer
	writer io.WriteCloser
	state  uintptr
}

// Library is the simulator's Library implementation. Handles are opaque
// monotonic integers, not real pointers; CompressBlock dereferences the
// Operation's input/output pointers with unsafe.Slice exactly as a real
// native backend would, so callers exercise the same pinning discipline.
type Library struct {
	mu          sync.Mutex
	next        uint64
	states      map[uintptr]*state
	compressors map[uintptr]*compressor

	// StateAllocs/StateFrees count AllocState/FreeState calls, used by
	// tests to assert property 7/8 (exactly one state alloc/free under
	// each lifecycle).
	StateAllocs int
	StateFrees  int
}

// New builds a simulator Library ready for use.
func New() *Library {
	return &Library{
		next:        1,
		states:      make(map[uintptr]*state),
		compressors: make(map[uintptr]*compressor),
	}
}

func (l *Library) nextHandle() uintptr {
	return uintptr(atomic.AddUint64(&l.next, 1))
}

func (l *Library) GetSupportedCompressors() (uint64, error) {
	// gzip and deflate bits set, brotli unset.
	return 0b011, nil
}

func (l *Library) GetCompressorBlockSize(method, level int32) (uint32, error) {
	if method == methodBrotli {
		return 0, nativeErr(-9)
	}
	return 65536, nil
}

func (l *Library) GetCompressorType(compressorHandle uintptr) (int32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.compressors[compressorHandle]
	if !ok {
		return 0, nativeErr(-1)
	}
	return c.method, nil
}

func (l *Library) GetCompressorLevel(compressorHandle uintptr) (int32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.compressors[compressorHandle]
	if !ok {
		return 0, nativeErr(-1)
	}
	return c.level, nil
}

func (l *Library) GetCompressedSize(method int32, inputSize uint32) (uint32, error) {
	if method == methodBrotli {
		return 0, nativeErr(-9)
	}
	// worst case: input plus 20% overhead plus header slack.
	return inputSize + inputSize/5 + 64, nil
}

func (l *Library) CompressBlock(compressorHandle uintptr, op *native.Operation) error {
	l.mu.Lock()
	c, ok := l.compressors[compressorHandle]
	l.mu.Unlock()
	if !ok {
		return nativeErr(-1)
	}

	if op.InputSize > 0 {
		if op.InputPtr == 0 {
			return nativeErr(-11)
		}
		in := unsafe.Slice((*byte)(unsafe.Pointer(op.InputPtr)), op.InputSize)
		if _, err := c.writer.Write(in); err != nil {
			return nativeErr(-13)
		}
		op.BytesRead = op.InputSize
	}

	if op.Flush != 0 {
		if err := c.writer.Close(); err != nil {
			return nativeErr(-13)
		}
	} else if f, ok := c.writer.(interface{ Flush() error }); ok {
		_ = f.Flush()
	}

	avail := uint32(c.buf.Len())
	n := avail
	if n > op.OutputSize {
		n = op.OutputSize
	}
	if n > 0 {
		if op.OutputPtr == 0 {
			return nativeErr(-12)
		}
		out := unsafe.Slice((*byte)(unsafe.Pointer(op.OutputPtr)), op.OutputSize)
		copy(out, c.buf.Next(int(n)))
	}
	op.BytesWritten = n

	return nil
}

func (l *Library) AllocState() (uintptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	h := l.nextHandle()
	l.states[h] = &state{allocated: true}
	l.StateAllocs++
	return h, nil
}

func (l *Library) FreeState(st uintptr) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.states[st]; !ok {
		return nativeErr(-1)
	}
	delete(l.states, st)
	l.StateFrees++
	return nil
}

func (l *Library) AllocCompressor(st uintptr, method, level int32) (uintptr, uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.states[st]; !ok {
		return 0, 0, nativeErr(-1)
	}

	buf := &bytes.Buffer{}

	var w io.WriteCloser
	switch method {
	case methodGzip:
		w = gzip.NewWriter(buf)
	case methodDeflate:
		fw, err := flate.NewWriter(buf, flateLevel(level))
		if err != nil {
			return 0, 0, nativeErr(-10)
		}
		w = fw
	default:
		return 0, 0, nativeErr(-9)
	}

	h := l.nextHandle()
	l.compressors[h] = &compressor{method: method, level: level, buf: buf, writer: w, state: st}

	return h, 65536, nil
}

func (l *Library) FreeCompressor(compressorHandle uintptr) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.compressors[compressorHandle]; !ok {
		return nativeErr(-1)
	}
	delete(l.compressors, compressorHandle)
	return nil
}

func (l *Library) Close() error {
	return nil
}

// flateLevel maps the host's 0 (fastest) / 1 (default) / 2 (smallest) level
// enum onto compress/flate's level constants.
func flateLevel(level int32) int {
	switch level {
	case 0:
		return flate.BestSpeed
	case 2:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}

func nativeErr(code int64) error {
	_, err := native.MapReturn(code)
	return err
}

var _ native.Library = (*Library)(nil)

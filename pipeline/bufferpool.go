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

package pipeline

import "sync"

// BufferPool is the memory source a pipe draws its reserve spans from. Get
// returns a buffer of unspecified length; if its capacity falls short of a
// reservation the pipe allocates that span directly instead of calling Get
// again. Put returns a buffer this package obtained via Get once it is done
// with it (fully drained by a reader, or discarded unused).
type BufferPool interface {
	Get() []byte
	Put([]byte)
}

type syncBufferPool struct {
	size int
	pool sync.Pool
}

// NewBufferPool returns a BufferPool backed by sync.Pool, handing out
// buffers of size bytes.
func NewBufferPool(size int) BufferPool {
	if size <= 0 {
		size = defaultChunk
	}
	p := &syncBufferPool{size: size}
	p.pool.New = func() any { return make([]byte, p.size) }
	return p
}

func (p *syncBufferPool) Get() []byte  { return p.pool.Get().([]byte) }
func (p *syncBufferPool) Put(b []byte) { p.pool.Put(b) } //nolint:staticcheck // sync.Pool wants any

// defaultBufferPool is the package-default pool a Worker falls back to when
// its Config.BufferPool is nil.
var defaultBufferPool = NewBufferPool(defaultChunk)

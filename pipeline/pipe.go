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

// Package pipeline implements the Socket Pipeline Worker: a
// full-duplex byte pipeline decoupling socket I/O, running on background
// goroutines, from the caller-facing stream. Per the "pipe + stream
// façade" design note, the bounded queue underneath supports
// reserve(hint)/advance(n) on the writer side and a cancelable read on the
// reader side; zero bytes maps to EOF.
package pipeline

import (
	"context"
	"io"
	"sync"

	"golang.org/x/sync/semaphore"

	liberr "github.com/nabbar/vnhost/errors"
)

// defaultChunk is used when reserve is called with hint <= 0.
const defaultChunk = 4096

// segment is one published chunk. orig is non-nil when data's backing array
// came from pool.Get(); the consumer Puts it back once data is fully read.
type segment struct {
	data []byte
	orig []byte
}

// pipe is a single-producer/single-consumer bounded byte queue. Capacity is
// enforced in bytes via a weighted semaphore (golang.org/x/sync/semaphore):
// reserve acquires weight equal to the requested span, advance releases the
// part of the span it does not publish, and read releases weight for the
// bytes it hands to the caller. This is the "pause writer threshold"
// against max_recv_buffer_data.
type pipe struct {
	sem    *semaphore.Weighted
	chunks chan segment
	pool   BufferPool

	mu           sync.Mutex
	pending      []byte // reserved-but-not-yet-advanced span
	pendingOrig  []byte // non-nil when pending came from pool
	leftover     []byte // reader-side partially consumed chunk
	leftoverOrig []byte // non-nil when leftover came from pool

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error

	canceledRead  chan struct{}
	canceledWrite chan struct{}
}

func newPipe(pauseThresholdBytes int, pool BufferPool) *pipe {
	if pauseThresholdBytes <= 0 {
		pauseThresholdBytes = defaultChunk * 4
	}
	return &pipe{
		sem:           semaphore.NewWeighted(int64(pauseThresholdBytes)),
		chunks:        make(chan segment, 64),
		pool:          pool,
		closed:        make(chan struct{}),
		canceledRead:  make(chan struct{}, 1),
		canceledWrite: make(chan struct{}, 1),
	}
}

// reset restores the pipe to empty and a fresh cancellation generation,
// for pool reuse.
func (p *pipe) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.putOrig(p.pendingOrig)
	p.putOrig(p.leftoverOrig)

	p.pending = nil
	p.pendingOrig = nil
	p.leftover = nil
	p.leftoverOrig = nil
	p.closeOnce = sync.Once{}
	p.closed = make(chan struct{})
	p.closeErr = nil
	p.canceledRead = make(chan struct{}, 1)
	p.canceledWrite = make(chan struct{}, 1)
	// Drain anything left on the channel from a prior life.
	for {
		select {
		case seg := <-p.chunks:
			p.putOrig(seg.orig)
		default:
			goto drained
		}
	}
drained:
}

// putOrig returns orig to the pool, if both are non-nil. Callers hold p.mu
// or have exclusive access (reset).
func (p *pipe) putOrig(orig []byte) {
	if orig != nil && p.pool != nil {
		p.pool.Put(orig)
	}
}

// alloc returns a span of length hint, drawn from the pool when it offers
// enough capacity; orig is the pool's own buffer (for a later Put) or nil
// when span was allocated directly.
func (p *pipe) alloc(hint int) (span, orig []byte) {
	if p.pool != nil {
		if b := p.pool.Get(); cap(b) >= hint {
			return b[:hint], b
		}
	}
	return make([]byte, hint), nil
}

// reserve returns a writable span of length hint (defaultChunk if hint<=0),
// blocking until enough byte-capacity is available, canceled, or closed.
func (p *pipe) reserve(ctx context.Context, hint int) ([]byte, error) {
	if hint <= 0 {
		hint = defaultChunk
	}

	if err := p.sem.Acquire(ctx, int64(hint)); err != nil {
		select {
		case <-ctx.Done():
			return nil, liberr.New(liberr.KindCanceled, "reserve canceled")
		default:
			return nil, err
		}
	}

	span, orig := p.alloc(hint)
	p.mu.Lock()
	p.pending = span
	p.pendingOrig = orig
	p.mu.Unlock()

	return span, nil
}

// advance publishes the first n bytes of the most recently reserved span,
// releasing any unused reserved capacity back to the semaphore.
func (p *pipe) advance(n int) {
	p.mu.Lock()
	span := p.pending
	orig := p.pendingOrig
	p.pending = nil
	p.pendingOrig = nil
	p.mu.Unlock()

	if span == nil {
		return
	}
	if n < 0 {
		n = 0
	}
	if n > len(span) {
		n = len(span)
	}

	if unused := len(span) - n; unused > 0 {
		p.sem.Release(int64(unused))
	}

	if n == 0 {
		// Nothing published; the whole reserved span was released above as
		// unused, so only the pooled buffer is returned.
		p.putOrig(orig)
		return
	}

	select {
	case p.chunks <- segment{data: span[:n], orig: orig}:
	case <-p.closed:
		p.sem.Release(int64(n))
		p.putOrig(orig)
	}
}

// read consumes from the pipe. On timeout/cancellation via ctx it returns a
// Canceled error without losing buffered bytes: the next read resumes
// exactly where this one left off.
func (p *pipe) read(ctx context.Context, buf []byte) (int, error) {
	p.mu.Lock()
	leftover := p.leftover
	leftoverOrig := p.leftoverOrig
	p.mu.Unlock()

	if len(leftover) == 0 {
		select {
		case chunk, ok := <-p.chunks:
			if !ok {
				return 0, p.loadCloseErr()
			}
			leftover = chunk.data
			leftoverOrig = chunk.orig
		case <-p.canceledRead:
			return 0, liberr.New(liberr.KindCanceled, "recv canceled")
		case <-ctx.Done():
			return 0, ctxErr(ctx)
		case <-p.closed:
			// Drain whatever remains buffered before surfacing EOF.
			select {
			case chunk, ok := <-p.chunks:
				if ok {
					leftover = chunk.data
					leftoverOrig = chunk.orig
					break
				}
				return 0, p.loadCloseErr()
			default:
				return 0, p.loadCloseErr()
			}
		}
	}

	n := copy(buf, leftover)
	rest := leftover[n:]

	if len(rest) == 0 {
		p.sem.Release(int64(len(leftover)))
		p.putOrig(leftoverOrig)
		leftoverOrig = nil
	} else {
		// Partial consumption: the released weight corresponds only to the
		// bytes handed to the caller; the remainder stays reserved until
		// fully drained by a later read. leftoverOrig stays attached to
		// rest so the eventual full drain still returns it to the pool.
		p.sem.Release(int64(n))
	}

	p.mu.Lock()
	p.leftover = rest
	p.leftoverOrig = leftoverOrig
	p.mu.Unlock()

	return n, nil
}

// complete finalizes the pipe's writer side with err (nil means clean
// EOF). Safe to call multiple times; only the first call takes effect.
func (p *pipe) complete(err error) {
	p.closeOnce.Do(func() {
		p.closeErr = err
		close(p.closed)
		close(p.chunks)
	})
}

func (p *pipe) loadCloseErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closeErr != nil {
		return p.closeErr
	}
	return io.EOF
}

// cancelPendingRead wakes a single blocked read() call with a Canceled
// error, without affecting the pipe's buffered state or closing it.
func (p *pipe) cancelPendingRead() {
	select {
	case p.canceledRead <- struct{}{}:
	default:
	}
}

// cancelPendingWrite posts one token on canceledWrite. reserve() and
// advance() do not wait on that channel, so the token does not wake them.
func (p *pipe) cancelPendingWrite() {
	select {
	case p.canceledWrite <- struct{}{}:
	default:
	}
}

func ctxErr(ctx context.Context) error {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return liberr.New(liberr.KindTimeout, "operation timed out")
	default:
		return liberr.New(liberr.KindCanceled, "operation canceled")
	}
}

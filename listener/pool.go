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

// Package listener implements the TCP Listener Node: N accept
// workers over one bound socket, a pool of reusable connio.Descriptor
// objects bounded by cache_quota, max_connections enforcement, and a
// published queue of accepted connections.
package listener

import (
	"sync"

	"github.com/nabbar/vnhost/connio"
	"github.com/nabbar/vnhost/logger"
)

// descriptorPool is the thread-safe, cache_quota-bounded pool of
// connio.Descriptor objects a Node rents from and returns to on every
// accept/release cycle.
type descriptorPool struct {
	log   logger.FuncLog
	mu    sync.Mutex
	free  []*connio.Descriptor
	quota int
}

func newDescriptorPool(log logger.FuncLog, quota int) *descriptorPool {
	if quota <= 0 {
		quota = 64
	}
	return &descriptorPool{log: log, quota: quota}
}

// rent returns a pooled Descriptor or allocates a new one if the pool is
// empty.
func (p *descriptorPool) rent() *connio.Descriptor {
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		d := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()
		d.Prepare()
		return d
	}
	p.mu.Unlock()
	return connio.New(p.log)
}

// give returns d to the pool, subject to cache_quota; beyond quota the
// Descriptor is simply dropped (eligible for GC) rather than retained.
func (p *descriptorPool) give(d *connio.Descriptor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) >= p.quota {
		return
	}
	p.free = append(p.free, d)
}

// drain empties the pool, for use during Node shutdown.
func (p *descriptorPool) drain() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = nil
}

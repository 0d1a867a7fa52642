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

package servicestack

import "sync"

// ServicePool is an explicit, non-reflective service container: a map from
// an explicit type tag (chosen by the publisher) to the published value.
// Plugins populate it through PublishServices on load; nothing here
// inspects a value's concrete type.
type ServicePool struct {
	mu   sync.RWMutex
	svcs map[string]any
}

// NewServicePool returns an empty pool.
func NewServicePool() *ServicePool {
	return &ServicePool{svcs: make(map[string]any)}
}

// Publish registers svc under tag, overwriting any prior registration.
func (p *ServicePool) Publish(tag string, svc any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.svcs[tag] = svc
}

// Lookup returns the value published under tag, if any.
func (p *ServicePool) Lookup(tag string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.svcs[tag]
	return v, ok
}

// Clear empties the pool, called when a Managed Plugin unloads.
func (p *ServicePool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.svcs = make(map[string]any)
}

// PublishServices is the entry point a plugin implements to announce its
// services; called once, on load, with the plugin's own pool.
type PublishServices func(pool *ServicePool)

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

import (
	"strings"
	"sync"

	"github.com/hashicorp/go-uuid"

	liberr "github.com/nabbar/vnhost/errors"
)

// Comparison selects the case sensitivity of a plugin-name match in
// send_command_to_plugin.
type Comparison int

const (
	Ordinal Comparison = iota
	OrdinalIgnoreCase
)

// CommandHandler accepts a dispatched command string and reports whether
// it handled it.
type CommandHandler func(command string) bool

// ManagedPlugin is the lifecycle wrapper/data model: a
// plugin instance plus a service container, an on-loaded/on-unloaded
// pair, and a command-dispatch method keyed by plugin name. The service
// container (Pool) is non-nil only between a successful load and the
// next unload.
type ManagedPlugin struct {
	ID   string
	Name string

	mu      sync.Mutex
	pool    *ServicePool
	handler CommandHandler

	publish   PublishServices
	endpoints []Endpoint
}

// NewManagedPlugin allocates a plugin wrapper with a fresh identity. name
// is the dispatch key used by send_command_to_plugin; publish is called
// during Load to populate the service container, via an explicit
// publish_services(&mut ServicePool) entry point called on load.
func NewManagedPlugin(name string, publish PublishServices, handler CommandHandler, endpoints []Endpoint) (*ManagedPlugin, error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return nil, liberr.Wrap(liberr.KindInvalidState, err, "generate plugin identity")
	}
	return &ManagedPlugin{
		ID:        id,
		Name:      name,
		publish:   publish,
		handler:   handler,
		endpoints: endpoints,
	}, nil
}

// Load runs on_loaded: populates the service container from the
// plugin's declared publisher. Must be called at most once between
// unloads.
func (m *ManagedPlugin) Load() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pool = NewServicePool()
	if m.publish != nil {
		m.publish(m.pool)
	}
}

// Unload runs on_unloaded: disposes the service container.
func (m *ManagedPlugin) Unload() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pool != nil {
		m.pool.Clear()
	}
	m.pool = nil
}

// Pool returns the plugin's service container, or nil if not currently
// loaded.
func (m *ManagedPlugin) Pool() *ServicePool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool
}

// Endpoints returns the set of endpoints this plugin exposes on load.
func (m *ManagedPlugin) Endpoints() []Endpoint {
	return m.endpoints
}

// TryDispatch reports whether this plugin's name matches name under cmp,
// and if so, invokes its command handler and returns the handler's
// verdict.
func (m *ManagedPlugin) TryDispatch(name, command string, cmp Comparison) (matched, handled bool) {
	if !matchName(m.Name, name, cmp) {
		return false, false
	}
	if m.handler == nil {
		return true, false
	}
	return true, m.handler(command)
}

func matchName(a, b string, cmp Comparison) bool {
	if cmp == OrdinalIgnoreCase {
		return strings.EqualFold(a, b)
	}
	return a == b
}

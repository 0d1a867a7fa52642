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
	"sync"

	liberr "github.com/nabbar/vnhost/errors"
	"github.com/nabbar/vnhost/logger"
)

// ServiceGroup is a collection of service hosts sharing the same
// transport endpoint (spec data model). It owns the mapping from managed
// plugin to the endpoint set that plugin attached, so unload reverses
// exactly what load attached.
type ServiceGroup struct {
	log      logger.FuncLog
	Endpoint string // the shared transport endpoint, e.g. "0.0.0.0:8443"
	Server   Server

	mu       sync.Mutex
	hosts    map[string]ServiceHost
	attached map[string][]Endpoint // plugin ID -> endpoints attached
}

// NewServiceGroup allocates a group bound to endpoint and driven by srv.
func NewServiceGroup(endpoint string, srv Server, log logger.FuncLog) *ServiceGroup {
	return &ServiceGroup{
		log:      logger.NopIfNil(log),
		Endpoint: endpoint,
		Server:   srv,
		hosts:    make(map[string]ServiceHost),
		attached: make(map[string][]Endpoint),
	}
}

// AddHost registers a host under its own name. Invariant: within a
// group, host names are unique.
func (g *ServiceGroup) AddHost(h ServiceHost) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.hosts[h.Name()]; exists {
		return liberr.New(liberr.KindInvalidArgument, "duplicate host name %q in service group", h.Name())
	}
	g.hosts[h.Name()] = h
	return nil
}

// OnPluginLoaded asks plugin for its endpoints, records the mapping, and
// notifies every host via OnRuntimeServiceAttach (propagation step 2).
func (g *ServiceGroup) OnPluginLoaded(plugin *ManagedPlugin) {
	endpoints := plugin.Endpoints()

	g.mu.Lock()
	g.attached[plugin.ID] = endpoints
	hosts := make([]ServiceHost, 0, len(g.hosts))
	for _, h := range g.hosts {
		hosts = append(hosts, h)
	}
	g.mu.Unlock()

	for _, h := range hosts {
		if err := h.OnRuntimeServiceAttach(plugin.Name, endpoints); err != nil {
			g.log().Warnf("servicestack: host %q rejected attach from plugin %q: %v", h.Name(), plugin.Name, err)
		}
	}
}

// OnPluginUnloaded looks up the recorded endpoint set, notifies every
// host via OnRuntimeServiceDetach with exactly that set, then forgets the
// mapping (propagation step 3).
func (g *ServiceGroup) OnPluginUnloaded(plugin *ManagedPlugin) {
	g.mu.Lock()
	endpoints, ok := g.attached[plugin.ID]
	delete(g.attached, plugin.ID)
	hosts := make([]ServiceHost, 0, len(g.hosts))
	for _, h := range g.hosts {
		hosts = append(hosts, h)
	}
	g.mu.Unlock()

	if !ok {
		return
	}

	for _, h := range hosts {
		if err := h.OnRuntimeServiceDetach(plugin.Name, endpoints); err != nil {
			g.log().Warnf("servicestack: host %q rejected detach from plugin %q: %v", h.Name(), plugin.Name, err)
		}
	}
}

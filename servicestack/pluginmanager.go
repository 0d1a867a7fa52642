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
	"context"
	"sync"

	"github.com/nabbar/vnhost/logger"
	"github.com/nabbar/vnhost/metrics"
)

// PluginManager binds a Discovery port and a Loader to the set of
// currently loaded plugins, fanning load/unload events out to every
// registered ServiceGroup in the propagation order.
//
// The manager owns the event channel; plugins never hold a reference back
// to it, so subscription is modeled as message passing rather than a
// listener back-edge.
type PluginManager struct {
	log      logger.FuncLog
	discover Discovery
	load     Loader
	met      *metrics.Metrics

	mu     sync.Mutex
	loaded map[string]*ManagedPlugin // path -> plugin
	byName map[string]*ManagedPlugin
	groups []*ServiceGroup
	events chan PluginEvent
}

// NewPluginManager wires a discovery port and loader. Groups are
// registered via AddGroup before Run starts. met may be nil, in which case
// no metrics are recorded.
func NewPluginManager(discover Discovery, load Loader, log logger.FuncLog, met *metrics.Metrics) *PluginManager {
	return &PluginManager{
		log:      logger.NopIfNil(log),
		discover: discover,
		load:     load,
		met:      met,
		loaded:   make(map[string]*ManagedPlugin),
		byName:   make(map[string]*ManagedPlugin),
		events:   make(chan PluginEvent, 16),
	}
}

// AddGroup registers g to receive attach/detach fan-out for every future
// plugin event. Must be called before Run.
func (m *PluginManager) AddGroup(g *ServiceGroup) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups = append(m.groups, g)
}

// Run starts the discovery watch and processes events until ctx is done.
// A single consumer goroutine handles every event in arrival order, so
// events are serialized both for one plugin and across plugins.
func (m *PluginManager) Run(ctx context.Context) error {
	go func() {
		for {
			select {
			case ev := <-m.events:
				m.handle(ev)
			case <-ctx.Done():
				return
			}
		}
	}()

	return m.discover.Watch(ctx, func(ev PluginEvent) {
		select {
		case m.events <- ev:
		case <-ctx.Done():
		}
	})
}

func (m *PluginManager) handle(ev PluginEvent) {
	switch ev.Kind {
	case PluginLoaded:
		m.loadOne(ev.Path)
	case PluginUnloaded:
		m.unloadOne(ev.Path)
	}
}

func (m *PluginManager) loadOne(path string) {
	// A reload (e.g. a hot-reload write event on an already-loaded bundle)
	// must detach the previous instance before the new one attaches.
	m.unloadOne(path)

	plugin, err := m.load(path)
	if err != nil {
		m.log().Warnf("servicestack: plugin load failed for %q: %v", path, err)
		m.met.ObservePluginLoadAttempt(false, m.LoadedCount())
		return
	}

	// on_loaded populates the service container (step 1).
	plugin.Load()

	m.mu.Lock()
	m.loaded[path] = plugin
	m.byName[plugin.Name] = plugin
	groups := append([]*ServiceGroup(nil), m.groups...)
	m.mu.Unlock()

	m.met.ObservePluginLoadAttempt(true, m.LoadedCount())

	// Fan out to every Service Group (step 2).
	for _, g := range groups {
		g.OnPluginLoaded(plugin)
	}
}

func (m *PluginManager) unloadOne(path string) {
	m.mu.Lock()
	plugin, ok := m.loaded[path]
	if ok {
		delete(m.loaded, path)
		delete(m.byName, plugin.Name)
	}
	groups := append([]*ServiceGroup(nil), m.groups...)
	m.mu.Unlock()

	if !ok {
		return
	}

	for _, g := range groups {
		g.OnPluginUnloaded(plugin)
	}

	// on_unloaded disposes the service container (step 3, after detach).
	plugin.Unload()
	m.met.ObservePluginsLoaded(m.LoadedCount())
}

// SendCommandToPlugin implements the send_command_to_plugin: it returns
// true as soon as a loaded plugin whose name matches name under cmp has a
// command handler that accepts command, and false otherwise. Plugins are
// visited in no particular order.
func (m *PluginManager) SendCommandToPlugin(name, command string, cmp Comparison) bool {
	m.mu.Lock()
	plugins := make([]*ManagedPlugin, 0, len(m.loaded))
	for _, p := range m.loaded {
		plugins = append(plugins, p)
	}
	m.mu.Unlock()

	for _, p := range plugins {
		if matched, handled := p.TryDispatch(name, command, cmp); matched && handled {
			return true
		}
	}
	return false
}

// LoadedCount reports the number of currently loaded plugins, mainly for
// tests and diagnostics.
func (m *PluginManager) LoadedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loaded)
}

// TeardownAll detaches and unloads every currently loaded plugin, in the
// same order as a normal unload event (detach from every group, then
// dispose the service container). Used once, by the stack's final
// wait_for_all teardown on shutdown.
func (m *PluginManager) TeardownAll() {
	m.mu.Lock()
	plugins := make([]*ManagedPlugin, 0, len(m.loaded))
	for path, p := range m.loaded {
		plugins = append(plugins, p)
		delete(m.loaded, path)
		delete(m.byName, p.Name)
	}
	groups := append([]*ServiceGroup(nil), m.groups...)
	m.mu.Unlock()

	for _, p := range plugins {
		for _, g := range groups {
			g.OnPluginUnloaded(p)
		}
		p.Unload()
	}
	m.met.ObservePluginsLoaded(m.LoadedCount())
}

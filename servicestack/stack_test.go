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

package servicestack_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/vnhost/servicestack"
)

// recordingHost records every attach/detach call it receives, so tests can
// assert the exact endpoint set passed on each side of a load/unload pair.
type recordingHost struct {
	name string

	mu       sync.Mutex
	attached [][]servicestack.Endpoint
	detached [][]servicestack.Endpoint
}

func newRecordingHost(name string) *recordingHost {
	return &recordingHost{name: name}
}

func (h *recordingHost) Name() string { return h.name }

func (h *recordingHost) OnRuntimeServiceAttach(_ string, endpoints []servicestack.Endpoint) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attached = append(h.attached, endpoints)
	return nil
}

func (h *recordingHost) OnRuntimeServiceDetach(_ string, endpoints []servicestack.Endpoint) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detached = append(h.detached, endpoints)
	return nil
}

func (h *recordingHost) snapshot() (attached, detached [][]servicestack.Endpoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]servicestack.Endpoint(nil), h.attached...), append([][]servicestack.Endpoint(nil), h.detached...)
}

// fakeDiscovery replays a fixed event script and then blocks until ctx is
// done, standing in for a real filesystem watch.
type fakeDiscovery struct {
	script []servicestack.PluginEvent
}

func (d *fakeDiscovery) Watch(ctx context.Context, onEvent func(servicestack.PluginEvent)) error {
	for _, ev := range d.script {
		onEvent(ev)
	}
	<-ctx.Done()
	return nil
}

// stubServer satisfies servicestack.Server without driving any real
// transport; Start blocks until its context is canceled.
type stubServer struct{}

func (stubServer) Start(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (stubServer) Stop(context.Context) error { return nil }

func makeLoader(endpointsByPath map[string][]servicestack.Endpoint, handlerByPath map[string]servicestack.CommandHandler) servicestack.Loader {
	return func(path string) (*servicestack.ManagedPlugin, error) {
		name := path
		return servicestack.NewManagedPlugin(name, nil, handlerByPath[path], endpointsByPath[path])
	}
}

var _ = Describe("ServiceGroup attach/detach parity", func() {
	It("detaches exactly the endpoints that were attached", func() {
		host := newRecordingHost("host-a")
		group := servicestack.NewServiceGroup(":8443", stubServer{}, nil)
		Expect(group.AddHost(host)).To(Succeed())

		endpoints := []servicestack.Endpoint{{Name: "users", Pattern: "/users"}, {Name: "orders", Pattern: "/orders"}}
		plugin, err := servicestack.NewManagedPlugin("plugin-a", nil, nil, endpoints)
		Expect(err).NotTo(HaveOccurred())
		plugin.Load()

		group.OnPluginLoaded(plugin)
		group.OnPluginUnloaded(plugin)

		attached, detached := host.snapshot()
		Expect(attached).To(HaveLen(1))
		Expect(detached).To(HaveLen(1))
		Expect(detached[0]).To(Equal(attached[0]))
		Expect(detached[0]).To(Equal(endpoints))
	})

	It("does not notify detach for a plugin that was never attached", func() {
		host := newRecordingHost("host-b")
		group := servicestack.NewServiceGroup(":8443", stubServer{}, nil)
		Expect(group.AddHost(host)).To(Succeed())

		plugin, err := servicestack.NewManagedPlugin("plugin-ghost", nil, nil, nil)
		Expect(err).NotTo(HaveOccurred())

		group.OnPluginUnloaded(plugin)

		_, detached := host.snapshot()
		Expect(detached).To(BeEmpty())
	})
})

var _ = Describe("PluginManager command dispatch", func() {
	It("routes a command to the plugin matching by ordinal name", func() {
		endpointsByPath := map[string][]servicestack.Endpoint{
			"/plugins/a": {{Name: "a-ep", Pattern: "/a"}},
			"/plugins/b": {{Name: "b-ep", Pattern: "/b"}},
		}
		handled := make(chan string, 1)
		handlerByPath := map[string]servicestack.CommandHandler{
			"/plugins/b": func(command string) bool {
				handled <- command
				return command == "ping"
			},
		}

		disc := &fakeDiscovery{script: []servicestack.PluginEvent{
			{Kind: servicestack.PluginLoaded, Path: "/plugins/a"},
			{Kind: servicestack.PluginLoaded, Path: "/plugins/b"},
		}}
		loader := makeLoader(endpointsByPath, handlerByPath)

		// NewManagedPlugin keys plugins by the path passed as name, so loading
		// "/plugins/b" registers a plugin literally named "/plugins/b".
		pm := servicestack.NewPluginManager(disc, loader, nil, nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- pm.Run(ctx) }()

		Eventually(pm.LoadedCount).Should(Equal(2))

		Expect(pm.SendCommandToPlugin("/plugins/b", "ping", servicestack.Ordinal)).To(BeTrue())
		Eventually(handled).Should(Receive(Equal("ping")))

		Expect(pm.SendCommandToPlugin("/plugins/c", "ping", servicestack.Ordinal)).To(BeFalse())

		cancel()
		Eventually(done, time.Second).Should(Receive())
	})
})

var _ = Describe("Stack lifecycle", func() {
	It("rejects stop before start and start after running", func() {
		group := servicestack.NewServiceGroup(":0", stubServer{}, nil)
		stack := servicestack.New([]*servicestack.ServiceGroup{group}, nil, nil)

		_, err := stack.StopAndWaitAsync()
		Expect(err).To(HaveOccurred())

		Expect(stack.StartServers(context.Background())).To(Succeed())
		Expect(stack.State()).To(Equal(servicestack.Running))

		err = stack.StartServers(context.Background())
		Expect(err).To(HaveOccurred())

		wait, err := stack.StopAndWaitAsync()
		Expect(err).NotTo(HaveOccurred())
		Eventually(wait, time.Second).Should(Receive())
		Expect(stack.State()).To(Equal(servicestack.Stopped))
	})

	It("detaches every loaded plugin from every group on shutdown", func() {
		host := newRecordingHost("host-c")
		group := servicestack.NewServiceGroup(":0", stubServer{}, nil)
		Expect(group.AddHost(host)).To(Succeed())

		endpoints := []servicestack.Endpoint{{Name: "x", Pattern: "/x"}}
		disc := &fakeDiscovery{script: []servicestack.PluginEvent{{Kind: servicestack.PluginLoaded, Path: "/plugins/x"}}}
		loader := makeLoader(map[string][]servicestack.Endpoint{"/plugins/x": endpoints}, nil)
		pm := servicestack.NewPluginManager(disc, loader, nil, nil)

		stack := servicestack.New([]*servicestack.ServiceGroup{group}, pm, nil)
		Expect(stack.StartServers(context.Background())).To(Succeed())

		Eventually(pm.LoadedCount).Should(Equal(1))

		wait, err := stack.StopAndWaitAsync()
		Expect(err).NotTo(HaveOccurred())
		Eventually(wait, time.Second).Should(Receive())

		_, detached := host.snapshot()
		Expect(detached).To(HaveLen(1))
		Expect(detached[0]).To(Equal(endpoints))
	})
})

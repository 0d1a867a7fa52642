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

package listener_test

import (
	"context"
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/vnhost/config"
	"github.com/nabbar/vnhost/listener"
)

func baseConfig() config.Listener {
	cfg := config.Defaults()
	cfg.LocalAddress = "127.0.0.1:0"
	cfg.AcceptThreads = 2
	return cfg
}

var _ = Describe("Node", func() {
	It("enforces max_connections, closing the K+1st accepted connection (property 4)", func() {
		cfg := baseConfig()
		cfg.MaxConnections = 1

		n, err := listener.Listen(context.Background(), cfg, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		defer n.Close()

		dialAddr := n.Addr().String()

		c1, err := net.Dial("tcp", dialAddr)
		Expect(err).NotTo(HaveOccurred())
		defer c1.Close()

		var first = <-n.Accepted()
		Expect(first.Descriptor).NotTo(BeNil())

		c2, err := net.Dial("tcp", dialAddr)
		Expect(err).NotTo(HaveOccurred())
		defer c2.Close()

		// The second connection should be rejected (closed) rather than
		// published, since max_connections=1 is already in use.
		Consistently(n.Accepted(), 200*time.Millisecond).ShouldNot(Receive())

		Expect(first.Release(context.Background(), true)).To(Succeed())
	})

	It("reuses the same descriptor object after a reused close (property 5)", func() {
		cfg := baseConfig()
		cfg.AcceptThreads = 1 // single acceptor makes reuse order deterministic

		n, err := listener.Listen(context.Background(), cfg, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		defer n.Close()

		dialAddr := n.Addr().String()

		c1, err := net.Dial("tcp", dialAddr)
		Expect(err).NotTo(HaveOccurred())
		defer c1.Close()

		first := <-n.Accepted()
		Expect(first.Release(context.Background(), true)).To(Succeed())

		// The acceptor rents its next descriptor as soon as it publishes one,
		// so c2 lands on a descriptor rented before first was returned; the
		// pooled first descriptor is rented for the connection after that.
		c2, err := net.Dial("tcp", dialAddr)
		Expect(err).NotTo(HaveOccurred())
		defer c2.Close()

		second := <-n.Accepted()
		Expect(second.Release(context.Background(), false)).To(Succeed())

		c3, err := net.Dial("tcp", dialAddr)
		Expect(err).NotTo(HaveOccurred())
		defer c3.Close()

		third := <-n.Accepted()
		Expect(third.Descriptor).To(BeIdenticalTo(first.Descriptor))
		Expect(third.Release(context.Background(), false)).To(Succeed())
	})

	It("completes wait_for_exit within a bounded time after Close (graceful accept abort)", func() {
		cfg := baseConfig()
		cfg.AcceptThreads = 1

		n, err := listener.Listen(context.Background(), cfg, nil, nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(n.Close()).To(Succeed())

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		Expect(n.WaitForExitAsync(ctx)).To(Succeed())
	})
})


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

package connio_test

import (
	"context"
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/vnhost/connio"
)

var _ = Describe("Descriptor", func() {
	var ln net.Listener

	BeforeEach(func() {
		var err error
		ln, err = net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = ln.Close()
	})

	It("echoes bytes written by the peer (echo server smoke scenario)", func() {
		d := connio.New(nil)
		cfg := connio.Config{RecvBufferSize: 512, MaxRecvBufferData: 4096, MaxSendBufferData: 4096}

		acceptErr := make(chan error, 1)
		go func() {
			acceptErr <- d.Accept(context.Background(), ln, nil, cfg)
		}()

		client, err := net.Dial("tcp", ln.Addr().String())
		Expect(err).NotTo(HaveOccurred())
		defer client.Close()

		Expect(<-acceptErr).NotTo(HaveOccurred())
		defer d.Close(context.Background())

		hello := []byte{0x48, 0x65, 0x6c, 0x6c, 0x6f}
		_, err = client.Write(hello)
		Expect(err).NotTo(HaveOccurred())

		stream := d.GetStream(context.Background())
		buf := make([]byte, len(hello))
		total := 0
		for total < len(hello) {
			n, err := stream.Read(buf[total:])
			Expect(err).NotTo(HaveOccurred())
			total += n
		}
		_, err = stream.Write(buf)
		Expect(err).NotTo(HaveOccurred())

		echoed := make([]byte, len(hello))
		_, err = client.Read(echoed)
		Expect(err).NotTo(HaveOccurred())
		Expect(echoed).To(Equal(hello))
	})

	It("reports local and remote endpoints after accept", func() {
		d := connio.New(nil)
		cfg := connio.Config{RecvBufferSize: 512, MaxRecvBufferData: 4096, MaxSendBufferData: 4096}

		acceptErr := make(chan error, 1)
		go func() { acceptErr <- d.Accept(context.Background(), ln, nil, cfg) }()

		client, err := net.Dial("tcp", ln.Addr().String())
		Expect(err).NotTo(HaveOccurred())
		defer client.Close()
		Expect(<-acceptErr).NotTo(HaveOccurred())
		defer d.Close(context.Background())

		local, remote := d.GetEndpoints()
		Expect(local).NotTo(BeNil())
		Expect(remote).NotTo(BeNil())
		Expect(remote.String()).To(Equal(client.LocalAddr().String()))
	})

	It("drains both workers before Close returns", func() {
		d := connio.New(nil)
		cfg := connio.Config{RecvBufferSize: 512, MaxRecvBufferData: 4096, MaxSendBufferData: 4096}

		acceptErr := make(chan error, 1)
		go func() { acceptErr <- d.Accept(context.Background(), ln, nil, cfg) }()

		client, err := net.Dial("tcp", ln.Addr().String())
		Expect(err).NotTo(HaveOccurred())
		Expect(<-acceptErr).NotTo(HaveOccurred())

		closed := make(chan error, 1)
		go func() { closed <- d.Close(context.Background()) }()

		Eventually(closed, time.Second).Should(Receive())
		Expect(d.Started()).To(BeFalse())
		_ = client.Close()
	})
})

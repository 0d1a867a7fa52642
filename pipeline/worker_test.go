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

package pipeline_test

import (
	"context"
	"io"
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	liberr "github.com/nabbar/vnhost/errors"
	"github.com/nabbar/vnhost/pipeline"
)

func newWorkerPair(cfg pipeline.Config) (*pipeline.Worker, net.Conn) {
	client, peer := net.Pipe()
	w := pipeline.New(nil)
	w.Prepare(client, cfg)
	return w, peer
}

var _ = Describe("Worker", func() {
	var cfg pipeline.Config

	BeforeEach(func() {
		cfg = pipeline.Config{
			RecvBufferSize:    512,
			MaxRecvBufferData: 4096,
			MaxSendBufferData: 4096,
			SendTimeout:       2 * time.Second,
			RecvTimeout:       2 * time.Second,
		}
	})

	It("round-trips bytes through the recv and send pipes (property 1)", func() {
		w, peer := newWorkerPair(cfg)
		defer w.Release()
		defer peer.Close()

		go func() {
			buf := make([]byte, 5)
			_, _ = io.ReadFull(peer, buf)
			_, _ = peer.Write(buf)
		}()

		n, err := w.Send(context.Background(), []byte("hello"))
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(5))

		out := make([]byte, 5)
		total := 0
		for total < 5 {
			n, err := w.Recv(context.Background(), out[total:])
			Expect(err).NotTo(HaveOccurred())
			total += n
		}
		Expect(string(out)).To(Equal("hello"))
	})

	It("does not lose buffered bytes on a canceled recv (property 2)", func() {
		w, peer := newWorkerPair(cfg)
		defer w.Release()
		defer peer.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := w.Recv(ctx, make([]byte, 4))
		Expect(liberr.Is(err, liberr.KindTimeout)).To(BeTrue())

		_, _ = peer.Write([]byte("ping"))

		out := make([]byte, 4)
		n, err := w.Recv(context.Background(), out)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(out[:n])).To(ContainSubstring("p"))
	})

	It("lets send and recv directions make independent progress (property 3)", func() {
		w, peer := newWorkerPair(cfg)
		defer w.Release()
		defer peer.Close()

		done := make(chan struct{})
		go func() {
			defer close(done)
			n, err := w.Send(context.Background(), []byte("outbound"))
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(len("outbound")))
		}()

		buf := make([]byte, len("outbound"))
		_, err := io.ReadFull(peer, buf)
		Expect(err).NotTo(HaveOccurred())
		Eventually(done).Should(BeClosed())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = w.Recv(ctx, make([]byte, 1))
		Expect(liberr.Is(err, liberr.KindTimeout)).To(BeTrue())
	})

	It("propagates peer close as EOF on the recv side", func() {
		w, peer := newWorkerPair(cfg)
		defer w.Release()

		_ = peer.Close()

		_, err := w.Recv(context.Background(), make([]byte, 4))
		Expect(err).To(Equal(io.EOF))
	})

	It("applies backpressure once the send pipe reaches its byte quota", func() {
		small := cfg
		small.MaxSendBufferData = 8
		w, peer := newWorkerPair(small)
		defer w.Release()
		defer peer.Close()

		payload := make([]byte, 64)

		sendDone := make(chan error, 1)
		go func() {
			_, err := w.Send(context.Background(), payload)
			sendDone <- err
		}()

		drained := make([]byte, 0, 64)
		buf := make([]byte, 8)
		for len(drained) < 64 {
			n, err := peer.Read(buf)
			Expect(err).NotTo(HaveOccurred())
			drained = append(drained, buf[:n]...)
		}

		Eventually(sendDone).Should(Receive(BeNil()))
		Expect(drained).To(Equal(payload))
	})
})

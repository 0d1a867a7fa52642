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

package compress_test

import (
	"bytes"
	"compress/gzip"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/vnhost/compress"
	"github.com/nabbar/vnhost/compress/native/simulator"
)

var _ = Describe("Compressor Manager", func() {
	var (
		sim *simulator.Library
		mgr *compress.Manager
	)

	BeforeEach(func() {
		sim = simulator.New()
		mgr = compress.NewManager(sim, nil)
	})

	Context("legacy lifecycle", func() {
		It("frees the whole state on deinit when commit was never called", func() {
			s := mgr.AllocCompressor()

			_, err := mgr.InitCompressor(s, compress.MethodGzip, compress.LevelFastest)
			Expect(err).ToNot(HaveOccurred())
			Expect(s.InstanceAllocated()).To(BeTrue())

			Expect(mgr.DeinitCompressor(s)).To(Succeed())
			Expect(s.InstanceAllocated()).To(BeFalse())
			Expect(s.CompressorAllocated()).To(BeFalse())
		})

		It("does not leak across many init/deinit cycles", func() {
			s := mgr.AllocCompressor()

			for i := 0; i < 50; i++ {
				_, err := mgr.InitCompressor(s, compress.MethodGzip, compress.LevelFastest)
				Expect(err).ToNot(HaveOccurred())
				Expect(mgr.DeinitCompressor(s)).To(Succeed())
			}

			Expect(sim.StateAllocs).To(Equal(sim.StateFrees))
		})
	})

	Context("commit API lifecycle", func() {
		It("allocates the state exactly once across many init/deinit cycles", func() {
			s := mgr.AllocCompressor()
			Expect(mgr.CommitMemory(s)).To(Succeed())

			for i := 0; i < 25; i++ {
				_, err := mgr.InitCompressor(s, compress.MethodGzip, compress.LevelFastest)
				Expect(err).ToNot(HaveOccurred())
				Expect(mgr.DeinitCompressor(s)).To(Succeed())
				Expect(s.InstanceAllocated()).To(BeTrue(), "commit state must survive deinit")
			}

			Expect(mgr.DecommitMemory(s)).To(Succeed())

			Expect(sim.StateAllocs).To(Equal(1))
			Expect(sim.StateFrees).To(Equal(1))
		})

		It("refuses decommit while a compressor is still live", func() {
			s := mgr.AllocCompressor()
			Expect(mgr.CommitMemory(s)).To(Succeed())
			_, err := mgr.InitCompressor(s, compress.MethodGzip, compress.LevelFastest)
			Expect(err).ToNot(HaveOccurred())

			Expect(mgr.DecommitMemory(s)).To(HaveOccurred())
		})
	})

	Context("compression", func() {
		It("produces a valid gzip stream across compress_block and flush", func() {
			s := mgr.AllocCompressor()
			_, err := mgr.InitCompressor(s, compress.MethodGzip, compress.LevelFastest)
			Expect(err).ToNot(HaveOccurred())

			input := []byte("hello world")
			output := make([]byte, 4096)

			var total bytes.Buffer

			_, written, err := mgr.CompressBlock(s, input, output)
			Expect(err).ToNot(HaveOccurred())
			total.Write(output[:written])

			flushed, err := mgr.Flush(s, output)
			Expect(err).ToNot(HaveOccurred())
			total.Write(output[:flushed])

			Expect(total.Len()).To(BeNumerically(">", 0))
			Expect(total.Bytes()[0:2]).To(Equal([]byte{0x1f, 0x8b}))

			r, err := gzip.NewReader(bytes.NewReader(total.Bytes()))
			Expect(err).ToNot(HaveOccurred())
			defer r.Close()

			roundTrip := &bytes.Buffer{}
			_, err = roundTrip.ReadFrom(r)
			Expect(err).ToNot(HaveOccurred())
			Expect(roundTrip.Bytes()).To(Equal(input))

			Expect(mgr.DeinitCompressor(s)).To(Succeed())
		})

		It("rejects compress_block on an uninitialized state", func() {
			s := mgr.AllocCompressor()
			_, _, err := mgr.CompressBlock(s, []byte("x"), make([]byte, 16))
			Expect(err).To(HaveOccurred())
		})
	})

	Context("supported methods", func() {
		It("reports gzip and deflate, not brotli", func() {
			set, err := mgr.GetSupportedMethods()
			Expect(err).ToNot(HaveOccurred())
			Expect(set.Has(compress.MethodGzip)).To(BeTrue())
			Expect(set.Has(compress.MethodDeflate)).To(BeTrue())
			Expect(set.Has(compress.MethodBrotli)).To(BeFalse())
		})
	})
})

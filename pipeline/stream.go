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

package pipeline

import (
	"context"
	"time"
)

// Stream adapts a Worker to io.Reader/io.Writer for callers that want a
// plain blocking stream instead of the context-aware Send/Recv pair (the
// "stream façade" design note, e.g. for http.Server-style
// consumers built on net.Conn-shaped abstractions).
type Stream struct {
	w   *Worker
	ctx context.Context
}

// NewStream wraps w. ctx bounds every Read/Write issued through the
// façade in addition to the Worker's own per-direction timers.
func NewStream(w *Worker, ctx context.Context) *Stream {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Stream{w: w, ctx: ctx}
}

func (s *Stream) Read(p []byte) (int, error)  { return s.w.Recv(s.ctx, p) }
func (s *Stream) Write(p []byte) (int, error) { return s.w.Send(s.ctx, p) }

// SetDeadline lines up with net.Conn's shape for code that type-asserts
// deadline support; it sets both directions' timers to the same value.
func (s *Stream) SetDeadline(t time.Time) error {
	d := time.Until(t)
	s.w.SetSendTimeout(d)
	s.w.SetRecvTimeout(d)
	return nil
}

func (s *Stream) SetReadDeadline(t time.Time) error {
	s.w.SetRecvTimeout(time.Until(t))
	return nil
}

func (s *Stream) SetWriteDeadline(t time.Time) error {
	s.w.SetSendTimeout(time.Until(t))
	return nil
}

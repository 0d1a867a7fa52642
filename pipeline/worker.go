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
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	liberr "github.com/nabbar/vnhost/errors"
	"github.com/nabbar/vnhost/logger"
)

// SockIO is the I/O port a Worker marshals bytes across. connio.Descriptor
// passes its accepted net.Conn as the SockIO; tests may supply a
// net.Pipe() half or any other net.Conn directly.
type SockIO interface {
	net.Conn
}

// Config controls per-Worker sizing and timers.
type Config struct {
	// RecvBufferSize is the size hint used when pulling bytes off the
	// socket into the recv pipe.
	RecvBufferSize int

	// MaxRecvBufferData / MaxSendBufferData bound the respective pipe's
	// in-flight bytes (the "pause writer threshold").
	MaxRecvBufferData int
	MaxSendBufferData int

	// SendTimeout / RecvTimeout are the independent per-direction
	// deadlines applied to each Send/Recv call; zero means no deadline.
	SendTimeout time.Duration
	RecvTimeout time.Duration

	// OnBytesRecv / OnBytesSend, if set, are called from the respective
	// background pump after each successful socket read/write with the
	// number of bytes moved. Used by callers (connio) to report pipeline
	// throughput metrics; nil means no reporting.
	OnBytesRecv func(n int)
	OnBytesSend func(n int)

	// BufferPool supplies the reserve spans both pipes draw from; nil
	// selects a package-default pool backed by sync.Pool.
	BufferPool BufferPool
}

// Worker marshals bytes between a connected socket and two bounded byte
// pipes (send/recv) on background goroutines,. The caller
// interacts only with Send/Recv (or the Stream façade); it never touches
// the socket directly once prepare() hands the Worker off.
type Worker struct {
	log logger.FuncLog

	mu        sync.Mutex
	sock      SockIO
	recv      *pipe
	send      *pipe
	cfg       Config
	wg        sync.WaitGroup
	cancel    context.CancelFunc
	running   atomic.Bool
	sendTOns  atomic.Int64
	recvTOns  atomic.Int64
	lastSendErr atomic.Value
	lastRecvErr atomic.Value
}

// New allocates an idle Worker. Call prepare to attach a socket before use.
func New(log logger.FuncLog) *Worker {
	return &Worker{log: logger.NopIfNil(log)}
}

// prepare attaches sock and starts the background send/recv pumps. It is
// the pool "checkout" hook: a Worker may be prepared, used,
// released, and prepared again across its lifetime.
func (w *Worker) prepare(sock SockIO, cfg Config) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if cfg.RecvBufferSize <= 0 {
		cfg.RecvBufferSize = defaultChunk
	}
	if cfg.BufferPool == nil {
		cfg.BufferPool = defaultBufferPool
	}

	w.sock = sock
	w.cfg = cfg
	w.recv = newPipe(cfg.MaxRecvBufferData, cfg.BufferPool)
	w.send = newPipe(cfg.MaxSendBufferData, cfg.BufferPool)
	w.sendTOns.Store(int64(cfg.SendTimeout))
	w.recvTOns.Store(int64(cfg.RecvTimeout))
	w.lastSendErr.Store(errBox{})
	w.lastRecvErr.Store(errBox{})

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.running.Store(true)

	w.wg.Add(2)
	go w.recvWorker(ctx)
	go w.sendWorker(ctx)
}

// Prepare is the exported form of prepare, used by connio when handing a
// freshly accepted connection to a pooled Worker.
func (w *Worker) Prepare(sock SockIO, cfg Config) { w.prepare(sock, cfg) }

type errBox struct{ err error }

// release stops the background pumps and detaches the socket, returning
// the Worker to a reusable idle state. It does not
// close sock; the caller (connio.Descriptor) owns that.
func (w *Worker) release() {
	w.mu.Lock()
	cancel := w.cancel
	recv, send := w.recv, w.send
	w.mu.Unlock()

	if !w.running.CompareAndSwap(true, false) {
		return
	}
	if cancel != nil {
		cancel()
	}
	if recv != nil {
		recv.complete(nil)
	}
	if send != nil {
		send.complete(nil)
	}
	w.wg.Wait()

	w.mu.Lock()
	w.sock = nil
	if w.recv != nil {
		w.recv.reset()
	}
	if w.send != nil {
		w.send.reset()
	}
	w.mu.Unlock()
}

// Release is the exported form of release.
func (w *Worker) Release() { w.release() }

// Dispose permanently tears the worker down; unlike release it does not
// expect reuse. For this implementation the two are equivalent since
// nothing here holds unmanaged resources beyond the pipes.
func (w *Worker) Dispose() { w.release() }

func (w *Worker) getMemory(hint int) ([]byte, *pipe, error) {
	w.mu.Lock()
	recv := w.recv
	w.mu.Unlock()
	if recv == nil {
		return nil, nil, liberr.New(liberr.KindInvalidState, "worker not prepared")
	}
	span, err := recv.reserve(context.Background(), hint)
	return span, recv, err
}

// recvWorker repeatedly pulls bytes off the socket into the recv pipe
// until the socket errs or ctx is canceled, then completes the pipe so
// blocked Recv calls observe EOF.
func (w *Worker) recvWorker(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			w.recv.complete(nil)
			return
		default:
		}

		span, err := w.recv.reserve(ctx, w.cfg.RecvBufferSize)
		if err != nil {
			w.recv.complete(err)
			return
		}

		// No deadline on the background read itself: SendTimeout/RecvTimeout
		// bound a Send/Recv call's ctx (see withTimeout), not the socket.
		// Timing out a caller's Recv must not complete this pipe — a
		// deadline here would do exactly that on every idle connection.
		_ = w.sock.SetReadDeadline(time.Time{})

		n, err := w.sock.Read(span)
		w.recv.advance(n)
		if n > 0 && w.cfg.OnBytesRecv != nil {
			w.cfg.OnBytesRecv(n)
		}

		if err != nil {
			w.lastRecvErr.Store(errBox{err: err})
			if err == io.EOF {
				w.recv.complete(nil)
			} else {
				w.recv.complete(classifySockErr(err))
			}
			return
		}
	}
}

// sendWorker repeatedly drains a ready segment from the send pipe and
// writes it to the socket, across as many syscalls as a partial write
// requires, before moving on to the next segment.
func (w *Worker) sendWorker(ctx context.Context) {
	defer w.wg.Done()

	buf := make([]byte, w.cfg.RecvBufferSize)
	for {
		n, err := w.send.read(ctx, buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}

		segment := buf[:n]
		written := 0
		for written < len(segment) {
			// Same reasoning as recvWorker: no deadline on the background
			// write, so a slow/idle peer never completes this pipe on its
			// own; only a Send call's own ctx times out.
			_ = w.sock.SetWriteDeadline(time.Time{})

			wn, werr := w.sock.Write(segment[written:])
			written += wn
			if wn > 0 && w.cfg.OnBytesSend != nil {
				w.cfg.OnBytesSend(wn)
			}
			if werr != nil {
				w.lastSendErr.Store(errBox{err: werr})
				w.send.complete(classifySockErr(werr))
				return
			}
		}
	}
}

// Send copies data into the send pipe in chunks of at most the pipe's byte
// quota (MaxSendBufferData), blocking (subject to ctx and the configured
// send timeout) until capacity for each chunk is available. On error it
// returns the number of bytes already queued.
func (w *Worker) Send(ctx context.Context, data []byte) (int, error) {
	w.mu.Lock()
	send := w.send
	limit := w.cfg.MaxSendBufferData
	w.mu.Unlock()
	if send == nil {
		return 0, liberr.New(liberr.KindInvalidState, "worker not prepared")
	}

	ctx, cancel := w.withTimeout(ctx, time.Duration(w.sendTOns.Load()))
	defer cancel()

	if limit <= 0 {
		limit = defaultChunk * 4
	}
	total := 0
	for total < len(data) {
		end := total + limit
		if end > len(data) {
			end = len(data)
		}
		span, err := send.reserve(ctx, end-total)
		if err != nil {
			return total, err
		}
		send.advance(copy(span, data[total:end]))
		total = end
	}
	return total, nil
}

// Recv copies up to len(p) bytes out of the recv pipe, blocking (subject
// to ctx and the configured recv timeout) until at least one byte is
// available, the socket reaches EOF, or it errs.
func (w *Worker) Recv(ctx context.Context, p []byte) (int, error) {
	w.mu.Lock()
	recv := w.recv
	w.mu.Unlock()
	if recv == nil {
		return 0, liberr.New(liberr.KindInvalidState, "worker not prepared")
	}

	ctx, cancel := w.withTimeout(ctx, time.Duration(w.recvTOns.Load()))
	defer cancel()

	return recv.read(ctx, p)
}

// SetSendTimeout / SetRecvTimeout adjust the independent per-direction
// timers at runtime.
func (w *Worker) SetSendTimeout(d time.Duration) { w.sendTOns.Store(int64(d)) }
func (w *Worker) SetRecvTimeout(d time.Duration) { w.recvTOns.Store(int64(d)) }

// ShutdownClientPipeAsync signals end-of-input on the send pipe without
// closing the socket, letting any buffered bytes still drain to the wire
// (the client-pipe half-close).
func (w *Worker) ShutdownClientPipeAsync(ctx context.Context) error {
	w.mu.Lock()
	send := w.send
	w.mu.Unlock()
	if send == nil {
		return liberr.New(liberr.KindInvalidState, "worker not prepared")
	}
	send.complete(nil)
	return nil
}

func (w *Worker) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func classifySockErr(err error) error {
	if err == nil {
		return nil
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return liberr.Wrap(liberr.KindTimeout, err, "socket timeout")
	}
	return liberr.Wrap(liberr.KindIoError, err, "socket error")
}

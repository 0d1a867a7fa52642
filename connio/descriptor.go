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

// Package connio implements the Awaitable Server Socket: a
// pool-reusable object representing one accepted connection, from accept
// through close, encapsulating its pipeline.Worker. Descriptor is the
// only type users of a listener.Node see; it never exposes the kernel
// socket directly.
package connio

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	liberr "github.com/nabbar/vnhost/errors"
	"github.com/nabbar/vnhost/logger"
	"github.com/nabbar/vnhost/pipeline"
)

// AcceptStrategy abstracts the accept call itself: on platforms that can
// deliver initial bytes in the accept syscall, Accept may populate
// initialBytes > 0; everywhere else it performs a plain accept and
// initialBytes is always 0.
type AcceptStrategy interface {
	// Accept blocks until a connection arrives on ln or ctx is done. It
	// returns the accepted connection and the number of bytes the
	// strategy already deposited into recvSpan. recvSpan may be nil;
	// Descriptor.Accept always passes nil.
	Accept(ctx context.Context, ln net.Listener, recvSpan []byte) (conn net.Conn, initialBytes int, err error)
}

// portableAcceptStrategy is the strategy used everywhere this module does
// not carry a platform-specific syscall AcceptEx binding: plain accept,
// zero initial bytes. This is also the strategy used on Windows, since no
// cgo/syscall AcceptEx binding is in scope here. It ignores recvSpan and
// never deposits initial bytes.
type portableAcceptStrategy struct{}

func (portableAcceptStrategy) Accept(ctx context.Context, ln net.Listener, _ []byte) (net.Conn, int, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := ln.Accept()
		ch <- result{conn: c, err: err}
	}()

	select {
	case r := <-ch:
		return r.conn, 0, r.err
	case <-ctx.Done():
		return nil, 0, liberr.New(liberr.KindCanceled, "accept canceled")
	}
}

// DefaultAcceptStrategy returns the strategy this module uses on every
// supported platform.
func DefaultAcceptStrategy() AcceptStrategy { return portableAcceptStrategy{} }

// Config carries the pipeline sizing handed to every Descriptor a pool
// prepares (mirrors config.Listener's relevant fields).
type Config struct {
	RecvBufferSize    int
	MaxRecvBufferData int
	MaxSendBufferData int

	// OnBytesRecv / OnBytesSend are forwarded to the pipeline.Worker
	// verbatim; nil means no reporting.
	OnBytesRecv func(n int)
	OnBytesSend func(n int)

	// BufferPool is forwarded to the pipeline.Worker verbatim; nil selects
	// the pipeline package's default pool.
	BufferPool pipeline.BufferPool
}

// Descriptor is the per-connection object the listener pools and hands
// out. It is safe to share across the accept worker that produced it and
// the caller that eventually closes it, but not for concurrent close
// calls — the pool discipline ensures single ownership at any time.
type Descriptor struct {
	log logger.FuncLog

	mu      sync.Mutex
	conn    net.Conn
	worker  *pipeline.Worker
	cfg     Config
	local   net.Addr
	remote  net.Addr
	started atomic.Bool
}

// New allocates an idle, poolable Descriptor.
func New(log logger.FuncLog) *Descriptor {
	log = logger.NopIfNil(log)
	return &Descriptor{
		log:    log,
		worker: pipeline.New(log),
	}
}

// Accept performs the accept contract: on success it starts
// the pipeline's send/recv workers; on failure it returns the error without
// starting anything. It passes no recv span to the strategy, so no initial
// bytes are carried into the recv pipe.
func (d *Descriptor) Accept(ctx context.Context, ln net.Listener, strategy AcceptStrategy, cfg Config) error {
	if strategy == nil {
		strategy = DefaultAcceptStrategy()
	}
	if cfg.RecvBufferSize <= 0 {
		cfg.RecvBufferSize = 64 * 1024
	}

	conn, _, err := strategy.Accept(ctx, ln, nil)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.conn = conn
	d.cfg = cfg
	d.local = conn.LocalAddr()
	d.remote = conn.RemoteAddr()
	d.mu.Unlock()

	d.worker.Prepare(conn, pipeline.Config{
		RecvBufferSize:    cfg.RecvBufferSize,
		MaxRecvBufferData: cfg.MaxRecvBufferData,
		MaxSendBufferData: cfg.MaxSendBufferData,
		OnBytesRecv:       cfg.OnBytesRecv,
		OnBytesSend:       cfg.OnBytesSend,
		BufferPool:        cfg.BufferPool,
	})
	d.started.Store(true)

	return nil
}

// Close implements the ordered teardown: it completes the send pipe
// (ShutdownClientPipeAsync), closes the socket, then waits in
// Worker.Release for both workers to exit. It does not wait for the send
// worker to drain the send pipe before closing the socket, so bytes still
// queued there may not reach the peer. The kernel socket is always closed.
func (d *Descriptor) Close(ctx context.Context) error {
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()

	if conn == nil {
		return nil
	}

	_ = d.worker.ShutdownClientPipeAsync(ctx)

	// "Reuse" means the Descriptor object returns to the pool, not the
	// kernel socket: TCP has no portable disconnect-and-relist primitive,
	// so the socket itself is always released here.
	closeErr := conn.Close()

	d.worker.Release()

	d.mu.Lock()
	d.conn = nil
	d.mu.Unlock()
	d.started.Store(false)

	return closeErr
}

// GetStream returns the pipeline worker's stream façade, a non-owning
// view whose lifetime must not exceed the Descriptor's.
func (d *Descriptor) GetStream(ctx context.Context) *pipeline.Stream {
	return pipeline.NewStream(d.worker, ctx)
}

// GetEndpoints reports the local and remote addresses of the underlying
// kernel socket, as observed at accept time.
func (d *Descriptor) GetEndpoints() (local, remote net.Addr) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.local, d.remote
}

// Worker exposes the underlying pipeline.Worker for direct Send/Recv use
// by callers that do not want the io.Reader/io.Writer façade.
func (d *Descriptor) Worker() *pipeline.Worker { return d.worker }

// Conn exposes the raw accepted connection for OS-specific tuning
// (keepalive) that must happen before the pipeline starts moving bytes.
// nil before Accept succeeds or after Close.
func (d *Descriptor) Conn() net.Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn
}

// Started reports whether Accept has succeeded and Close has not yet run.
func (d *Descriptor) Started() bool { return d.started.Load() }

// Prepare resets a Descriptor pulled from the pool for a new accept
// cycle; a fresh Descriptor is already prepared.
func (d *Descriptor) Prepare() {
	// pipeline.Worker.Prepare is invoked from Accept once the socket is
	// known; nothing to reset here beyond the zero value already in place
	// after Close.
}

// Release is the pool teardown hook: if the Descriptor is still started it
// logs a warning (rather than panicking, since a panic in a pooled object
// would take the whole listener down) and calls Close, which stops both
// workers and closes the socket.
func (d *Descriptor) Release() {
	if d.started.Load() {
		d.log().Warnf("connio: descriptor released while still started")
		_ = d.Close(context.Background())
	}
}

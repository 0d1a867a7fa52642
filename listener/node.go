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

package listener

import (
	"context"
	"net"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/nabbar/vnhost/config"
	"github.com/nabbar/vnhost/connio"
	liberr "github.com/nabbar/vnhost/errors"
	"github.com/nabbar/vnhost/logger"
	"github.com/nabbar/vnhost/metrics"
)

// Accepted is one live connection published by the Node, wrapping the
// Descriptor so a consumer can eventually give it back via Release.
type Accepted struct {
	Descriptor *connio.Descriptor
	node       *Node
}

// Release returns the underlying descriptor to the Node for closing and,
// if reuse is requested and the disconnect succeeds, pool reuse — the
// close_connection_async(descriptor, reuse) contract.
func (a Accepted) Release(ctx context.Context, reuse bool) error {
	return a.node.closeConnection(ctx, a.Descriptor, reuse)
}

// Node is the TCP Listener Node: N accept workers over one
// bound socket, a cache_quota-bounded descriptor pool, max_connections
// enforcement, and a published channel of accepted connections.
type Node struct {
	log logger.FuncLog
	cfg config.Listener
	met *metrics.Metrics

	ln   net.Listener
	pool *descriptorPool

	accepted chan Accepted

	canceled atomic.Bool
	live     atomic.Int64

	group  *errgroup.Group
	cancel context.CancelFunc
}

// Listen binds cfg.LocalAddress and starts cfg.AcceptThreads accept
// workers. on_socket_created (cfg.OnSocketCreated) runs once, on the
// freshly created listening socket, before any accept is issued. met may be
// nil, in which case no metrics are recorded.
func Listen(ctx context.Context, cfg config.Listener, log logger.FuncLog, met *metrics.Metrics) (*Node, error) {
	log = logger.NopIfNil(log)

	ln, err := listenTCP(ctx, cfg)
	if err != nil {
		// A listener bind failure is fatal and raised to the caller.
		return nil, liberr.Wrap(liberr.KindIoError, err, "listen %s", cfg.LocalAddress)
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, runCtx := errgroup.WithContext(runCtx)

	n := &Node{
		log:      log,
		cfg:      cfg,
		met:      met,
		ln:       ln,
		pool:     newDescriptorPool(log, cfg.CacheQuota),
		accepted: make(chan Accepted, cfg.CacheQuota),
		group:    group,
		cancel:   cancel,
	}

	threads := cfg.AcceptThreads
	if threads < 1 {
		threads = 1
	}
	for i := 0; i < threads; i++ {
		group.Go(func() error {
			n.acceptLoop(runCtx)
			return nil
		})
	}

	return n, nil
}

// acceptLoop implements the per-worker accept cycle: rent a
// descriptor, accept, enforce max_connections, publish or discard.
func (n *Node) acceptLoop(ctx context.Context) {
	for {
		if n.canceled.Load() {
			return
		}

		d := n.pool.rent()

		addr := n.cfg.LocalAddress
		err := d.Accept(ctx, n.ln, connio.DefaultAcceptStrategy(), connio.Config{
			RecvBufferSize:    int(n.cfg.MaxRecvBufferData / 4),
			MaxRecvBufferData: int(n.cfg.MaxRecvBufferData),
			MaxSendBufferData: int(n.cfg.MaxRecvBufferData),
			OnBytesRecv:       func(b int) { n.met.ObserveBytesRecv(addr, b) },
			OnBytesSend:       func(b int) { n.met.ObserveBytesSend(addr, b) },
			BufferPool:        n.cfg.BufferPool,
		})

		if n.canceled.Load() {
			if err == nil {
				_ = d.Close(ctx)
			}
			return
		}

		if err != nil {
			n.log().Warnf("listener: accept error: %v", err)
			n.pool.give(d)
			continue
		}

		if n.cfg.TCPKeepAlive {
			if c := d.Conn(); c != nil {
				_ = tuneKeepAlive(c, n.cfg.TCPKeepAliveTime, n.cfg.TCPKeepAliveInterval)
			}
		}

		if n.cfg.DebugTCPLog {
			_, remote := d.GetEndpoints()
			n.log().Debugf("listener: accepted %s on %s", remote, addr)
		}

		if !n.reserveSlot() {
			_ = d.Close(ctx)
			n.pool.give(d)
			n.met.ObserveRejected(n.cfg.LocalAddress, "max_connections")
			continue
		}

		select {
		case n.accepted <- Accepted{Descriptor: d, node: n}:
			n.met.ObserveAccepted(n.cfg.LocalAddress, n.live.Load())
		default:
			// Queue full: treat like exceeding max_connections.
			n.live.Add(-1)
			_ = d.Close(ctx)
			n.pool.give(d)
			n.met.ObserveRejected(n.cfg.LocalAddress, "queue_full")
		}
	}
}

// reserveSlot atomically claims one live-connection slot against
// cfg.MaxConnections, so the live count is never observed to exceed it even
// transiently across concurrent accept workers. The caller must release the
// slot (via closeConnection, or directly on n.live) if it does not end up
// publishing the connection.
func (n *Node) reserveSlot() bool {
	if n.cfg.MaxConnections <= 0 {
		n.live.Add(1)
		return true
	}
	for {
		cur := n.live.Load()
		if cur >= int64(n.cfg.MaxConnections) {
			return false
		}
		if n.live.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Accepted returns the channel of published connections.
func (n *Node) Accepted() <-chan Accepted { return n.accepted }

// Addr returns the bound address of the listening socket.
func (n *Node) Addr() net.Addr { return n.ln.Addr() }

// closeConnection implements close_connection_async(descriptor, reuse).
func (n *Node) closeConnection(ctx context.Context, d *connio.Descriptor, reuse bool) error {
	if n.cfg.DebugTCPLog {
		_, remote := d.GetEndpoints()
		n.log().Debugf("listener: closing %s on %s (reuse=%v)", remote, n.cfg.LocalAddress, reuse)
	}

	err := d.Close(ctx)
	n.live.Add(-1)
	n.met.ObserveClosed(n.cfg.LocalAddress, n.live.Load())
	if err == nil && reuse && !n.canceled.Load() {
		n.pool.give(d)
	}
	return err
}

// Close implements the close semantics: set canceled, dispose the
// listening socket (aborting pending accepts), causing accept workers to
// exit.
func (n *Node) Close() error {
	if !n.canceled.CompareAndSwap(false, true) {
		return nil
	}
	n.cancel()
	return n.ln.Close()
}

// WaitForExitAsync completes once all accept workers have returned, then
// drains the pool and disposes any still-queued connections.
func (n *Node) WaitForExitAsync(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		_ = n.group.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	close(n.accepted)
	for a := range n.accepted {
		_ = a.Descriptor.Close(context.Background())
	}
	n.pool.drain()
	return nil
}

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

package main

import (
	"context"
	"sync"

	"github.com/nabbar/vnhost/config"
	"github.com/nabbar/vnhost/listener"
	"github.com/nabbar/vnhost/logger"
	"github.com/nabbar/vnhost/metrics"
)

// nodeServer adapts a listener.Node to servicestack.Server: Start binds and
// accepts until ctx is canceled, discarding every accepted connection
// immediately (wiring an application-level protocol on top of the accepted
// stream is out of scope here). Stop disposes the bound socket.
type nodeServer struct {
	cfg config.Listener
	log logger.FuncLog
	met *metrics.Metrics

	mu   sync.Mutex
	node *listener.Node
}

func (s *nodeServer) Start(ctx context.Context) error {
	n, err := listener.Listen(ctx, s.cfg, s.log, s.met)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.node = n
	s.mu.Unlock()

	go func() {
		for a := range n.Accepted() {
			_ = a.Release(context.Background(), false)
		}
	}()

	<-ctx.Done()
	_ = n.Close()
	return n.WaitForExitAsync(context.Background())
}

func (s *nodeServer) Stop(_ context.Context) error {
	s.mu.Lock()
	n := s.node
	s.mu.Unlock()

	if n == nil {
		return nil
	}
	return n.Close()
}

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

//go:build windows

package listener

import (
	"context"
	"net"
	"syscall"

	"github.com/nabbar/vnhost/config"
)

// listenTCP falls back to net.ListenConfig on Windows: cfg.Backlog is not
// honored here, since overriding it requires building the listening socket
// by hand (as rawlisten_unix.go does via golang.org/x/sys/unix), and no
// golang.org/x/sys/windows binding for that is in scope for this module —
// the same gap already noted for the accept strategy on this platform.
func listenTCP(ctx context.Context, cfg config.Listener) (net.Listener, error) {
	lc := net.ListenConfig{}
	if cfg.OnSocketCreated != nil {
		lc.Control = func(network, address string, c syscall.RawConn) error {
			var ctrlErr error
			err := c.Control(func(fd uintptr) {
				ctrlErr = cfg.OnSocketCreated(network, address, fd)
			})
			if err != nil {
				return err
			}
			return ctrlErr
		}
	}

	return lc.Listen(ctx, "tcp", cfg.LocalAddress)
}

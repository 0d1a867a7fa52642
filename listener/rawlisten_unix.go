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

//go:build !windows

package listener

import (
	"context"
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"

	"github.com/nabbar/vnhost/config"
)

// listenTCP builds cfg.LocalAddress's listening socket by hand. net.Listen
// picks its own listen(2) backlog internally with no portable way for a
// caller to override it, so cfg.Backlog can only reach the kernel by
// replicating socket/bind/listen ourselves and wrapping the resulting fd as
// a net.Listener. on_socket_created still runs once, right after socket(2)
// and before bind, exactly as it did through net.ListenConfig.Control.
func listenTCP(_ context.Context, cfg config.Listener) (net.Listener, error) {
	addr, err := net.ResolveTCPAddr("tcp", cfg.LocalAddress)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", cfg.LocalAddress, err)
	}

	domain := unix.AF_INET
	if addr.IP != nil && addr.IP.To4() == nil {
		domain = unix.AF_INET6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket %s: %w", cfg.LocalAddress, err)
	}
	abort := func(err error) (net.Listener, error) {
		_ = unix.Close(fd)
		return nil, err
	}

	if cfg.OnSocketCreated != nil {
		if err := cfg.OnSocketCreated("tcp", cfg.LocalAddress, uintptr(fd)); err != nil {
			return abort(err)
		}
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return abort(fmt.Errorf("setsockopt SO_REUSEADDR %s: %w", cfg.LocalAddress, err))
	}

	var sa unix.Sockaddr
	if domain == unix.AF_INET6 {
		sa6 := &unix.SockaddrInet6{Port: addr.Port}
		if ip := addr.IP.To16(); ip != nil {
			copy(sa6.Addr[:], ip)
		}
		sa = sa6
	} else {
		sa4 := &unix.SockaddrInet4{Port: addr.Port}
		if ip := addr.IP.To4(); ip != nil {
			copy(sa4.Addr[:], ip)
		}
		sa = sa4
	}

	if err := unix.Bind(fd, sa); err != nil {
		return abort(fmt.Errorf("bind %s: %w", cfg.LocalAddress, err))
	}

	backlog := cfg.Backlog
	if backlog <= 0 {
		backlog = unix.SOMAXCONN
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return abort(fmt.Errorf("listen %s backlog=%d: %w", cfg.LocalAddress, backlog, err))
	}

	// net.FileListener dup's fd into its own independent descriptor; the
	// os.File wrapping the original fd is closed right after.
	f := os.NewFile(uintptr(fd), "vnhost-listener")
	ln, err := net.FileListener(f)
	_ = f.Close()
	if err != nil {
		return nil, fmt.Errorf("file_listener %s: %w", cfg.LocalAddress, err)
	}
	return ln, nil
}

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

// Package servicestack implements the Service Stack, Plugin Manager and
// Service Group/Host model: virtual hosts composed into
// service groups keyed by transport endpoint, one server per group, and
// dynamic endpoint attachment as plugins load and unload.
package servicestack

import "context"

// Endpoint is a routable unit exposed by a plugin and attached to service
// hosts at load time.
type Endpoint struct {
	Name    string
	Pattern string
}

// ServiceHost is a processor endpoint bound to a transport endpoint.
// Implementations are supplied by the embedder; this package only
// sequences calls to them.
type ServiceHost interface {
	Name() string

	// OnRuntimeServiceAttach is called once per plugin load, with the
	// full set of endpoints that plugin published.
	OnRuntimeServiceAttach(pluginName string, endpoints []Endpoint) error

	// OnRuntimeServiceDetach is called on unload with exactly the set of
	// endpoints that was attached.
	OnRuntimeServiceDetach(pluginName string, endpoints []Endpoint) error
}

// Server is the out-of-scope HTTP server each Service Group drives. The
// stack calls Start with its linked context and stops servers by canceling
// that context; it does not call Stop.
type Server interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

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

package servicestack

import "context"

// EventKind classifies a discovery event.
type EventKind int

const (
	PluginLoaded EventKind = iota
	PluginUnloaded
)

// PluginEvent is emitted by a Discovery port when a plugin bundle
// appears, changes, or disappears. Path identifies the bundle; it is
// opaque to this package (a directory, an archive, whatever the
// discovery implementation resolves).
type PluginEvent struct {
	Kind EventKind
	Path string
}

// Discovery replaces plugin assembly loading mechanics. Watch blocks, delivering events to
// onEvent until ctx is done or an unrecoverable error occurs.
type Discovery interface {
	Watch(ctx context.Context, onEvent func(PluginEvent)) error
}

// Loader turns a discovered bundle path into a ManagedPlugin. This is the
// seam real plugin-assembly loading would occupy; the core only depends
// on the resulting ManagedPlugin.
type Loader func(path string) (*ManagedPlugin, error)

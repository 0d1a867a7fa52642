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

// Package fsdiscovery implements servicestack.Discovery over a plugin
// directory on disk: every top-level entry under the configured path is a
// bundle. With hot reload enabled, fsnotify watches the directory for
// entries appearing and disappearing and translates them into load/unload
// events.
package fsdiscovery

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	liberr "github.com/nabbar/vnhost/errors"
	"github.com/nabbar/vnhost/logger"
	"github.com/nabbar/vnhost/servicestack"
)

// Discovery watches config.Plugin.Path for bundle directories/files,
// implementing servicestack.Discovery.
type Discovery struct {
	log       logger.FuncLog
	path      string
	hotReload bool
}

// New builds a Discovery rooted at path. When hotReload is false, Watch
// performs a single initial scan (emitting one PluginLoaded per entry
// found) and then blocks until ctx is done, without observing further
// filesystem changes.
func New(path string, hotReload bool, log logger.FuncLog) *Discovery {
	return &Discovery{log: logger.NopIfNil(log), path: path, hotReload: hotReload}
}

// Watch implements servicestack.Discovery.
func (d *Discovery) Watch(ctx context.Context, onEvent func(servicestack.PluginEvent)) error {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return liberr.Wrap(liberr.KindIoError, err, "read plugin directory %q", d.path)
	}
	for _, e := range entries {
		onEvent(servicestack.PluginEvent{Kind: servicestack.PluginLoaded, Path: filepath.Join(d.path, e.Name())})
	}

	if !d.hotReload {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return liberr.Wrap(liberr.KindIoError, err, "create fsnotify watcher")
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(d.path); err != nil {
		return liberr.Wrap(liberr.KindIoError, err, "watch plugin directory %q", d.path)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			d.dispatch(ev, onEvent)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.log().Warnf("fsdiscovery: watch error on %q: %v", d.path, err)
		}
	}
}

func (d *Discovery) dispatch(ev fsnotify.Event, onEvent func(servicestack.PluginEvent)) {
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		onEvent(servicestack.PluginEvent{Kind: servicestack.PluginLoaded, Path: ev.Name})
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		onEvent(servicestack.PluginEvent{Kind: servicestack.PluginUnloaded, Path: ev.Name})
	}
}

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

package fsdiscovery_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nabbar/vnhost/servicestack"
	"github.com/nabbar/vnhost/servicestack/fsdiscovery"
)

type eventSink struct {
	mu   sync.Mutex
	seen []servicestack.PluginEvent
}

func (s *eventSink) record(ev servicestack.PluginEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, ev)
}

func (s *eventSink) snapshot() []servicestack.PluginEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]servicestack.PluginEvent(nil), s.seen...)
}

func TestWatchEmitsInitialScanWithoutHotReload(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bundle-a"), []byte("x"), 0o644); err != nil {
		t.Fatalf("seed bundle: %v", err)
	}

	disc := fsdiscovery.New(dir, false, nil)
	sink := &eventSink{}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := disc.Watch(ctx, sink.record); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	seen := sink.snapshot()
	if len(seen) != 1 {
		t.Fatalf("expected exactly 1 initial scan event, got %d: %+v", len(seen), seen)
	}
	if seen[0].Kind != servicestack.PluginLoaded {
		t.Fatalf("expected PluginLoaded, got %v", seen[0].Kind)
	}
}

func TestWatchHotReloadObservesCreateAndRemove(t *testing.T) {
	dir := t.TempDir()
	disc := fsdiscovery.New(dir, true, nil)
	sink := &eventSink{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- disc.Watch(ctx, sink.record) }()

	// Give the watcher time to register before mutating the directory.
	time.Sleep(50 * time.Millisecond)

	bundle := filepath.Join(dir, "bundle-b")
	if err := os.WriteFile(bundle, []byte("x"), 0o644); err != nil {
		t.Fatalf("create bundle: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var sawCreate bool
	for time.Now().Before(deadline) {
		for _, ev := range sink.snapshot() {
			if ev.Kind == servicestack.PluginLoaded && ev.Path == bundle {
				sawCreate = true
			}
		}
		if sawCreate {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !sawCreate {
		t.Fatalf("expected a PluginLoaded event for %q, saw %+v", bundle, sink.snapshot())
	}

	if err := os.Remove(bundle); err != nil {
		t.Fatalf("remove bundle: %v", err)
	}

	deadline = time.Now().Add(2 * time.Second)
	var sawRemove bool
	for time.Now().Before(deadline) {
		for _, ev := range sink.snapshot() {
			if ev.Kind == servicestack.PluginUnloaded && ev.Path == bundle {
				sawRemove = true
			}
		}
		if sawRemove {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !sawRemove {
		t.Fatalf("expected a PluginUnloaded event for %q, saw %+v", bundle, sink.snapshot())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Watch did not return after cancel")
	}
}

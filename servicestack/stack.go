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

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	liberr "github.com/nabbar/vnhost/errors"
	"github.com/nabbar/vnhost/logger"
)

// State is one of the four states of the Service Stack state machine.
type State int

const (
	Configured State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Configured:
		return "configured"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stack composes service groups and a plugin manager into a single
// runnable unit: `configured -> running -> stopping -> stopped`.
type Stack struct {
	log logger.FuncLog

	mu     sync.Mutex
	state  State
	groups []*ServiceGroup
	pm     *PluginManager

	cancel  context.CancelFunc
	waitAll chan error
}

// New builds a Stack in the Configured state from its groups and plugin
// manager.
func New(groups []*ServiceGroup, pm *PluginManager, log logger.FuncLog) *Stack {
	log = logger.NopIfNil(log)
	for _, g := range groups {
		if pm != nil {
			pm.AddGroup(g)
		}
	}
	return &Stack{log: log, state: Configured, groups: groups, pm: pm}
}

// State reports the current state.
func (s *Stack) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StartServers implements start_servers(parent_cancel): valid only from
// Configured. It creates a linked cancellation token, launches every
// group's server via Start(token), launches the plugin manager's
// discovery loop, and arms wait_for_all to run teardown exactly once
// every launched task returns.
func (s *Stack) StartServers(parentCancel context.Context) error {
	s.mu.Lock()
	if s.state != Configured {
		s.mu.Unlock()
		return liberr.New(liberr.KindInvalidState, "start_servers requires configured, got %s", s.state)
	}
	s.state = Running
	ctx, cancel := context.WithCancel(parentCancel)
	s.cancel = cancel
	s.waitAll = make(chan error, 1)
	groups := append([]*ServiceGroup(nil), s.groups...)
	pm := s.pm
	s.mu.Unlock()

	group, gctx := errgroup.WithContext(ctx)
	for _, g := range groups {
		g := g
		if g.Server == nil {
			continue
		}
		group.Go(func() error {
			return g.Server.Start(gctx)
		})
	}
	if pm != nil {
		group.Go(func() error {
			return pm.Run(gctx)
		})
	}

	go func() {
		err := group.Wait()
		s.onAllServerExit()
		s.waitAll <- err
		close(s.waitAll)
	}()

	return nil
}

// onAllServerExit tears down plugins and hosts exactly once, moving the
// stack to Stopped.
func (s *Stack) onAllServerExit() {
	s.mu.Lock()
	if s.state == Stopped {
		s.mu.Unlock()
		return
	}
	pm := s.pm
	s.state = Stopped
	s.mu.Unlock()

	if pm != nil {
		pm.TeardownAll()
	}
}

// StopAndWaitAsync implements stop_and_wait_async(): valid only from
// Running. It cancels the linked token and returns the same completion
// channel start_servers armed.
func (s *Stack) StopAndWaitAsync() (<-chan error, error) {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return nil, liberr.New(liberr.KindInvalidState, "stop_and_wait_async requires running, got %s", s.state)
	}
	s.state = Stopping
	cancel := s.cancel
	wait := s.waitAll
	s.mu.Unlock()

	cancel()
	return wait, nil
}

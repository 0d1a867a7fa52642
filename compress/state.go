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

package compress

import "sync"

// State is the Go-side handle to native compressor memory, plus two
// invariant flags: instanceAllocated and supportsCommitAPI. Operations
// other than CommitMemory/InitCompressor require instanceAllocated;
// DeinitCompressor's behavior is governed entirely by supportsCommitAPI,
// the single source of truth for which teardown path to take.
//
// Native compressor state is not thread-safe, so every Manager method and
// State accessor holds mu: calls on one State from several goroutines are
// serialized, not run in parallel.
type State struct {
	mu sync.Mutex

	stateHandle       uintptr
	instanceAllocated bool
	supportsCommitAPI bool

	compressorHandle    uintptr
	compressorAllocated bool

	method Method
	level  Level
}

// InstanceAllocated reports whether native state memory is currently held.
func (s *State) InstanceAllocated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instanceAllocated
}

// SupportsCommitAPI reports whether CommitMemory has been called on this
// State, switching Deinit's behavior to free only the compressor.
func (s *State) SupportsCommitAPI() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.supportsCommitAPI
}

// CompressorAllocated reports whether a live compressor object is attached.
func (s *State) CompressorAllocated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compressorAllocated
}

// Method returns the method the current compressor was initialized with.
func (s *State) Method() Method {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.method
}

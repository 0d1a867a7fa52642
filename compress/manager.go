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

// Package compress adapts a native streaming compressor to a host-side
// streaming compression interface, with a versioned commit/decommit API
// for backwards compatibility. It never implements a concrete
// compression algorithm itself; compress/native resolves and calls into a
// real shared library, and compress/native/simulator is a pure-Go test
// double used only by this package's own tests.
package compress

import (
	"runtime"
	"unsafe"

	"github.com/nabbar/vnhost/compress/native"
	liberr "github.com/nabbar/vnhost/errors"
	"github.com/nabbar/vnhost/metrics"
)

// Manager is the compressor manager: it owns the native.Library handle and
// mediates every State's lifecycle against it.
type Manager struct {
	lib native.Library
	met *metrics.Metrics
}

// NewManager builds a Manager over an already-opened native library. Most
// callers obtain lib via native.Open; tests construct one directly over
// compress/native/simulator. met may be nil, in which case no metrics are
// recorded.
func NewManager(lib native.Library, met *metrics.Metrics) *Manager {
	return &Manager{lib: lib, met: met}
}

// GetSupportedMethods enumerates the methods the loaded library reports,
// as a bitset.
func (m *Manager) GetSupportedMethods() (MethodSet, error) {
	bits, err := m.lib.GetSupportedCompressors()
	if err != nil {
		return MethodSet{}, err
	}

	methods := make([]Method, 0, methodCount)
	for i := Method(0); i < methodCount; i++ {
		if bits&(1<<uint(i)) != 0 {
			methods = append(methods, i)
		}
	}
	return NewMethodSet(methods...), nil
}

// AllocCompressor allocates an opaque state container. No native memory is
// held until InitCompressor (legacy path) or CommitMemory (commit path) is
// called on the returned State.
func (m *Manager) AllocCompressor() *State {
	return &State{}
}

// CommitMemory allocates the long-lived native state once; subsequent
// InitCompressor/DeinitCompressor calls only touch the compressor object,
// reusing this state, until DecommitMemory is called.
func (m *Manager) CommitMemory(s *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.instanceAllocated {
		return liberr.New(liberr.KindInvalidState, "commit_memory called on an already-allocated state")
	}

	h, err := m.lib.AllocState()
	if err != nil {
		return err
	}

	s.stateHandle = h
	s.instanceAllocated = true
	s.supportsCommitAPI = true
	return nil
}

// DecommitMemory frees the native state. It does not free an attached
// compressor: while one is live it returns an InvalidState error and frees
// nothing, so DeinitCompressor must run first.
func (m *Manager) DecommitMemory(s *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.compressorAllocated {
		return liberr.New(liberr.KindInvalidState, "decommit_memory called with a live compressor attached")
	}
	if !s.instanceAllocated {
		return liberr.New(liberr.KindInvalidState, "decommit_memory called on an unallocated state")
	}

	if err := m.lib.FreeState(s.stateHandle); err != nil {
		return err
	}

	s.instanceAllocated = false
	s.supportsCommitAPI = false
	return nil
}

// InitCompressor allocates native state and a native compressor of the
// given method/level, returning the compressor's preferred block size. If
// CommitMemory was never called for this State, the state is allocated
// here (legacy lifecycle); if it was, only the compressor is allocated,
// reusing the committed state.
func (m *Manager) InitCompressor(s *State, method Method, level Level) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.compressorAllocated {
		return 0, liberr.New(liberr.KindInvalidState, "init_compressor called with a compressor already live")
	}

	if !s.instanceAllocated {
		h, err := m.lib.AllocState()
		if err != nil {
			return 0, err
		}
		s.stateHandle = h
		s.instanceAllocated = true
		// supportsCommitAPI stays false: CommitMemory was never called.
	}

	handle, blockSize, err := m.lib.AllocCompressor(s.stateHandle, int32(method), int32(level))
	if err != nil {
		return 0, err
	}

	s.compressorHandle = handle
	s.compressorAllocated = true
	s.method = method
	s.level = level

	return blockSize, nil
}

// DeinitCompressor frees the compressor. Under the commit API it frees only
// the compressor object, leaving the committed state for reuse; otherwise
// it frees the entire state too, to avoid leaking in callers that never
// adopted the commit API.
func (m *Manager) DeinitCompressor(s *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.compressorAllocated {
		return liberr.New(liberr.KindInvalidState, "deinit_compressor called with no live compressor")
	}

	if err := m.lib.FreeCompressor(s.compressorHandle); err != nil {
		return err
	}
	s.compressorAllocated = false

	if s.supportsCommitAPI {
		return nil
	}

	if err := m.lib.FreeState(s.stateHandle); err != nil {
		return err
	}
	s.instanceAllocated = false

	return nil
}

// CompressBlock hands a non-flushing operation to the native library. Both
// buffers must remain pinned for the duration of the call; CompressBlock
// pins them itself via runtime.KeepAlive.
func (m *Manager) CompressBlock(s *State, input, output []byte) (bytesRead, bytesWritten uint32, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.compressorAllocated {
		return 0, 0, liberr.New(liberr.KindInvalidState, "compress_block called with no live compressor")
	}

	op := &native.Operation{
		InputSize:  uint32(len(input)),
		OutputSize: uint32(len(output)),
	}
	if len(input) > 0 {
		op.InputPtr = uintptr(unsafe.Pointer(&input[0]))
	}
	if len(output) > 0 {
		op.OutputPtr = uintptr(unsafe.Pointer(&output[0]))
	}

	err = m.lib.CompressBlock(s.compressorHandle, op)
	runtime.KeepAlive(input)
	runtime.KeepAlive(output)
	m.met.ObserveCompressorOp(s.method.String(), compressorOpResult(err))

	return op.BytesRead, op.BytesWritten, err
}

// Flush invokes the native library with no input and flush=true, returning
// the number of bytes produced.
func (m *Manager) Flush(s *State, output []byte) (bytesWritten uint32, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.compressorAllocated {
		return 0, liberr.New(liberr.KindInvalidState, "flush called with no live compressor")
	}

	op := &native.Operation{
		Flush:      1,
		OutputSize: uint32(len(output)),
	}
	if len(output) > 0 {
		op.OutputPtr = uintptr(unsafe.Pointer(&output[0]))
	}

	err = m.lib.CompressBlock(s.compressorHandle, op)
	runtime.KeepAlive(output)
	m.met.ObserveCompressorOp(s.method.String(), compressorOpResult(err))

	return op.BytesWritten, err
}

func compressorOpResult(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

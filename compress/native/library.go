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

package native

import (
	"os"

	liberr "github.com/nabbar/vnhost/errors"
)

const envLibPath = "VNLIB_COMPRESS_DLL_PATH"
const defaultLibName = "vnlib_compress"

// Library is the safe façade over the native library's exported function
// table. All methods are cdecl, fixed-width-integer calls;
// negative returns are translated to *errors.Error via MapReturn.
type Library interface {
	// GetSupportedCompressors enumerates the methods this library build
	// supports.
	GetSupportedCompressors() (uint64, error)

	// GetCompressorBlockSize returns the preferred block size for method/level.
	GetCompressorBlockSize(method, level int32) (uint32, error)

	// GetCompressorType returns the method a live compressor handle was
	// created with.
	GetCompressorType(compressorHandle uintptr) (int32, error)

	// GetCompressorLevel returns the level a live compressor handle was
	// created with.
	GetCompressorLevel(compressorHandle uintptr) (int32, error)

	// GetCompressedSize returns a worst-case output size estimate for
	// compressing inputSize bytes with method.
	GetCompressedSize(method int32, inputSize uint32) (uint32, error)

	// CompressBlock hands one Operation to the native library for the given
	// live compressor handle. Input/output pointers in op must remain
	// pinned for the duration of the call.
	CompressBlock(compressorHandle uintptr, op *Operation) error

	// AllocState allocates the long-lived native state container (used by
	// both the legacy and commit APIs). Returns an opaque state handle.
	AllocState() (uintptr, error)

	// FreeState frees a state handle previously returned by AllocState.
	FreeState(state uintptr) error

	// AllocCompressor allocates a compressor object of the given method and
	// level against an already-allocated state. Returns the compressor
	// handle and its preferred block size.
	AllocCompressor(state uintptr, method, level int32) (handle uintptr, blockSize uint32, err error)

	// FreeCompressor frees a compressor handle previously returned by
	// AllocCompressor. Does not free the state it was allocated against.
	FreeCompressor(compressorHandle uintptr) error

	// Close releases the underlying shared library handle. Safe to call
	// once all state/compressor handles resolved through this Library have
	// been freed.
	Close() error
}

// Operation is the compression operation struct passed to the native
// library. Its layout is bit-exact and must match the native ABI:
// sequential fields, native alignment, cdecl calling convention.
//
// InputPtr/OutputPtr are owned by the caller (compress.Manager) and must
// remain pinned (via runtime.KeepAlive) for the duration of the native call.
type Operation struct {
	InputPtr     uintptr
	OutputPtr    uintptr
	Flush        int32
	InputSize    uint32
	OutputSize   uint32
	BytesRead    uint32
	BytesWritten uint32
}

// Discover resolves the shared library path to load, in order:
//  1. configPath, if non-empty ("lib_path" configuration key).
//  2. the VNLIB_COMPRESS_DLL_PATH environment variable, if set.
//  3. the platform default name, resolved via platform default search.
func Discover(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if p := os.Getenv(envLibPath); p != "" {
		return p
	}
	return defaultLibName
}

// Open resolves path (via Discover, if path is empty) and loads the native
// library, returning a safe Library façade. The concrete loading strategy
// is platform-specific: library_unix.go uses dlopen/dlsym, library_windows.go
// uses syscall.NewLazyDLL.
func Open(path string) (Library, error) {
	resolved := Discover(path)
	lib, err := openPlatform(resolved)
	if err != nil {
		return nil, liberr.Wrap(liberr.KindInvalidState, err, "failed to load native compression library %q", resolved)
	}
	return lib, nil
}

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

package native

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdint.h>
#include <stdlib.h>

typedef struct {
	void*    input_ptr;
	void*    output_ptr;
	int32_t  flush;
	uint32_t input_size;
	uint32_t output_size;
	uint32_t bytes_read;
	uint32_t bytes_written;
} vnh_operation_t;

typedef int64_t (*vnh_fn_get_supported)(void);
typedef int64_t (*vnh_fn_get_block_size)(int32_t, int32_t);
typedef int64_t (*vnh_fn_get_handle_prop)(void*);
typedef int64_t (*vnh_fn_get_compressed_size)(int32_t, uint32_t);
typedef int64_t (*vnh_fn_compress_block)(void*, vnh_operation_t*);
typedef int64_t (*vnh_fn_alloc_state)(void);
typedef int64_t (*vnh_fn_free_state)(void*);
typedef int64_t (*vnh_fn_alloc_compressor)(void*, int32_t, int32_t, uint32_t*);
typedef int64_t (*vnh_fn_free_compressor)(void*);

static int64_t vnh_call_get_supported(void *f) {
	return ((vnh_fn_get_supported)f)();
}
static int64_t vnh_call_get_block_size(void *f, int32_t method, int32_t level) {
	return ((vnh_fn_get_block_size)f)(method, level);
}
static int64_t vnh_call_get_handle_prop(void *f, void *handle) {
	return ((vnh_fn_get_handle_prop)f)(handle);
}
static int64_t vnh_call_get_compressed_size(void *f, int32_t method, uint32_t inputSize) {
	return ((vnh_fn_get_compressed_size)f)(method, inputSize);
}
static int64_t vnh_call_compress_block(void *f, void *handle, vnh_operation_t *op) {
	return ((vnh_fn_compress_block)f)(handle, op);
}
static int64_t vnh_call_alloc_state(void *f) {
	return ((vnh_fn_alloc_state)f)();
}
static int64_t vnh_call_free_state(void *f, void *state) {
	return ((vnh_fn_free_state)f)(state);
}
static int64_t vnh_call_alloc_compressor(void *f, void *state, int32_t method, int32_t level, uint32_t *blockSize) {
	return ((vnh_fn_alloc_compressor)f)(state, method, level, blockSize);
}
static int64_t vnh_call_free_compressor(void *f, void *handle) {
	return ((vnh_fn_free_compressor)f)(handle);
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	liberr "github.com/nabbar/vnhost/errors"
)

// unixLibrary resolves the exported function table of a shared library via
// dlopen/dlsym, the standard POSIX dynamic-loading idiom. Every exported
// symbol is resolved eagerly at Open time so a missing symbol fails fast
// instead of panicking on first use.
type unixLibrary struct {
	handle unsafe.Pointer

	fnGetSupported    unsafe.Pointer
	fnGetBlockSize    unsafe.Pointer
	fnGetType         unsafe.Pointer
	fnGetLevel        unsafe.Pointer
	fnGetCompressedSz unsafe.Pointer
	fnCompressBlock   unsafe.Pointer
	fnAllocState      unsafe.Pointer
	fnFreeState       unsafe.Pointer
	fnAllocCompressor unsafe.Pointer
	fnFreeCompressor  unsafe.Pointer
}

func openPlatform(path string) (Library, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	h := C.dlopen(cpath, C.RTLD_NOW)
	if h == nil {
		return nil, fmt.Errorf("dlopen %q failed: %s", path, C.GoString(C.dlerror()))
	}

	l := &unixLibrary{handle: h}

	resolve := func(name string) (unsafe.Pointer, error) {
		cname := C.CString(name)
		defer C.free(unsafe.Pointer(cname))
		sym := C.dlsym(h, cname)
		if sym == nil {
			return nil, fmt.Errorf("symbol %q not found in %q", name, path)
		}
		return sym, nil
	}

	var err error
	if l.fnGetSupported, err = resolve("GetSupportedCompressors"); err != nil {
		return nil, err
	}
	if l.fnGetBlockSize, err = resolve("GetCompressorBlockSize"); err != nil {
		return nil, err
	}
	if l.fnGetType, err = resolve("GetCompressorType"); err != nil {
		return nil, err
	}
	if l.fnGetLevel, err = resolve("GetCompressorLevel"); err != nil {
		return nil, err
	}
	if l.fnGetCompressedSz, err = resolve("GetCompressedSize"); err != nil {
		return nil, err
	}
	if l.fnCompressBlock, err = resolve("CompressBlock"); err != nil {
		return nil, err
	}
	if l.fnAllocState, err = resolve("CompressionAllocState"); err != nil {
		return nil, err
	}
	if l.fnFreeState, err = resolve("CompressionFreeState"); err != nil {
		return nil, err
	}
	if l.fnAllocCompressor, err = resolve("CompressionAllocCompressor"); err != nil {
		return nil, err
	}
	if l.fnFreeCompressor, err = resolve("CompressionFreeCompressor"); err != nil {
		return nil, err
	}

	return l, nil
}

func (l *unixLibrary) GetSupportedCompressors() (uint64, error) {
	code := int64(C.vnh_call_get_supported(l.fnGetSupported))
	v, err := MapReturn(code)
	return uint64(v), err
}

func (l *unixLibrary) GetCompressorBlockSize(method, level int32) (uint32, error) {
	code := int64(C.vnh_call_get_block_size(l.fnGetBlockSize, C.int32_t(method), C.int32_t(level)))
	v, err := MapReturn(code)
	return uint32(v), err
}

func (l *unixLibrary) GetCompressorType(handle uintptr) (int32, error) {
	code := int64(C.vnh_call_get_handle_prop(l.fnGetType, unsafe.Pointer(handle)))
	v, err := MapReturn(code)
	return int32(v), err
}

func (l *unixLibrary) GetCompressorLevel(handle uintptr) (int32, error) {
	code := int64(C.vnh_call_get_handle_prop(l.fnGetLevel, unsafe.Pointer(handle)))
	v, err := MapReturn(code)
	return int32(v), err
}

func (l *unixLibrary) GetCompressedSize(method int32, inputSize uint32) (uint32, error) {
	code := int64(C.vnh_call_get_compressed_size(l.fnGetCompressedSz, C.int32_t(method), C.uint32_t(inputSize)))
	v, err := MapReturn(code)
	return uint32(v), err
}

func (l *unixLibrary) CompressBlock(compressorHandle uintptr, op *Operation) error {
	cop := C.vnh_operation_t{
		input_ptr:   unsafe.Pointer(op.InputPtr),
		output_ptr:  unsafe.Pointer(op.OutputPtr),
		flush:       C.int32_t(op.Flush),
		input_size:  C.uint32_t(op.InputSize),
		output_size: C.uint32_t(op.OutputSize),
	}

	code := int64(C.vnh_call_compress_block(l.fnCompressBlock, unsafe.Pointer(compressorHandle), &cop))
	_, err := MapReturn(code)

	op.BytesRead = uint32(cop.bytes_read)
	op.BytesWritten = uint32(cop.bytes_written)

	return err
}

func (l *unixLibrary) AllocState() (uintptr, error) {
	code := int64(C.vnh_call_alloc_state(l.fnAllocState))
	v, err := MapReturn(code)
	return uintptr(v), err
}

func (l *unixLibrary) FreeState(state uintptr) error {
	code := int64(C.vnh_call_free_state(l.fnFreeState, unsafe.Pointer(state)))
	_, err := MapReturn(code)
	return err
}

func (l *unixLibrary) AllocCompressor(state uintptr, method, level int32) (uintptr, uint32, error) {
	var blockSize C.uint32_t

	code := int64(C.vnh_call_alloc_compressor(l.fnAllocCompressor, unsafe.Pointer(state), C.int32_t(method), C.int32_t(level), &blockSize))
	v, err := MapReturn(code)
	if err != nil {
		return 0, 0, err
	}

	return uintptr(v), uint32(blockSize), nil
}

func (l *unixLibrary) FreeCompressor(compressorHandle uintptr) error {
	code := int64(C.vnh_call_free_compressor(l.fnFreeCompressor, unsafe.Pointer(compressorHandle)))
	_, err := MapReturn(code)
	return err
}

func (l *unixLibrary) Close() error {
	if l.handle == nil {
		return nil
	}
	if C.dlclose(l.handle) != 0 {
		return liberr.New(liberr.KindIoError, "dlclose failed: %s", C.GoString(C.dlerror()))
	}
	l.handle = nil
	return nil
}

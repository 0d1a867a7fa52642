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

//go:build windows

package native

import (
	"syscall"
	"unsafe"
)

// windowsLibrary resolves the exported function table via
// syscall.NewLazyDLL/NewProc, the idiom the corpus itself uses for
// Windows-specific native calls (rclone's backend/local/about_windows.go
// resolves kernel32!GetDiskFreeSpaceExW the same way).
type windowsLibrary struct {
	dll *syscall.LazyDLL

	procGetSupported    *syscall.LazyProc
	procGetBlockSize    *syscall.LazyProc
	procGetType         *syscall.LazyProc
	procGetLevel        *syscall.LazyProc
	procGetCompressedSz *syscall.LazyProc
	procCompressBlock   *syscall.LazyProc
	procAllocState      *syscall.LazyProc
	procFreeState       *syscall.LazyProc
	procAllocCompressor *syscall.LazyProc
	procFreeCompressor  *syscall.LazyProc
}

func openPlatform(path string) (Library, error) {
	dll := syscall.NewLazyDLL(path)

	l := &windowsLibrary{
		dll:                 dll,
		procGetSupported:    dll.NewProc("GetSupportedCompressors"),
		procGetBlockSize:    dll.NewProc("GetCompressorBlockSize"),
		procGetType:         dll.NewProc("GetCompressorType"),
		procGetLevel:        dll.NewProc("GetCompressorLevel"),
		procGetCompressedSz: dll.NewProc("GetCompressedSize"),
		procCompressBlock:   dll.NewProc("CompressBlock"),
		procAllocState:      dll.NewProc("CompressionAllocState"),
		procFreeState:       dll.NewProc("CompressionFreeState"),
		procAllocCompressor: dll.NewProc("CompressionAllocCompressor"),
		procFreeCompressor:  dll.NewProc("CompressionFreeCompressor"),
	}

	// Find forces symbol resolution now so a missing export fails at Open
	// time rather than on first use, mirroring library_unix.go's eager
	// dlsym resolution.
	for _, p := range []*syscall.LazyProc{
		l.procGetSupported, l.procGetBlockSize, l.procGetType, l.procGetLevel,
		l.procGetCompressedSz, l.procCompressBlock, l.procAllocState,
		l.procFreeState, l.procAllocCompressor, l.procFreeCompressor,
	} {
		if err := p.Find(); err != nil {
			return nil, err
		}
	}

	return l, nil
}

func (l *windowsLibrary) GetSupportedCompressors() (uint64, error) {
	r1, _, _ := l.procGetSupported.Call()
	v, err := MapReturn(int64(r1))
	return uint64(v), err
}

func (l *windowsLibrary) GetCompressorBlockSize(method, level int32) (uint32, error) {
	r1, _, _ := l.procGetBlockSize.Call(uintptr(method), uintptr(level))
	v, err := MapReturn(int64(r1))
	return uint32(v), err
}

func (l *windowsLibrary) GetCompressorType(handle uintptr) (int32, error) {
	r1, _, _ := l.procGetType.Call(handle)
	v, err := MapReturn(int64(r1))
	return int32(v), err
}

func (l *windowsLibrary) GetCompressorLevel(handle uintptr) (int32, error) {
	r1, _, _ := l.procGetLevel.Call(handle)
	v, err := MapReturn(int64(r1))
	return int32(v), err
}

func (l *windowsLibrary) GetCompressedSize(method int32, inputSize uint32) (uint32, error) {
	r1, _, _ := l.procGetCompressedSz.Call(uintptr(method), uintptr(inputSize))
	v, err := MapReturn(int64(r1))
	return uint32(v), err
}

func (l *windowsLibrary) CompressBlock(compressorHandle uintptr, op *Operation) error {
	r1, _, _ := l.procCompressBlock.Call(compressorHandle, uintptr(unsafe.Pointer(op)))
	_, err := MapReturn(int64(r1))
	return err
}

func (l *windowsLibrary) AllocState() (uintptr, error) {
	r1, _, _ := l.procAllocState.Call()
	v, err := MapReturn(int64(r1))
	return uintptr(v), err
}

func (l *windowsLibrary) FreeState(state uintptr) error {
	r1, _, _ := l.procFreeState.Call(state)
	_, err := MapReturn(int64(r1))
	return err
}

func (l *windowsLibrary) AllocCompressor(state uintptr, method, level int32) (uintptr, uint32, error) {
	var blockSize uint32
	r1, _, _ := l.procAllocCompressor.Call(state, uintptr(method), uintptr(level), uintptr(unsafe.Pointer(&blockSize)))
	v, err := MapReturn(int64(r1))
	if err != nil {
		return 0, 0, err
	}
	return uintptr(v), blockSize, nil
}

func (l *windowsLibrary) FreeCompressor(compressorHandle uintptr) error {
	r1, _, _ := l.procFreeCompressor.Call(compressorHandle)
	_, err := MapReturn(int64(r1))
	return err
}

func (l *windowsLibrary) Close() error {
	// Windows has no DLL-unload analogue to dlclose exposed via syscall.LazyDLL;
	// the module stays mapped for the process lifetime, matching the // "the library handle lives for the process".
	return nil
}

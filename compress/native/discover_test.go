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

package native_test

import (
	"testing"

	"github.com/nabbar/vnhost/compress/native"
)

func TestDiscoverPrefersConfigPath(t *testing.T) {
	t.Setenv("VNLIB_COMPRESS_DLL_PATH", "/opt/env/libvnlib_compress.so")

	got := native.Discover("/opt/config/libvnlib_compress.so")
	if got != "/opt/config/libvnlib_compress.so" {
		t.Fatalf("expected config path to win, got %q", got)
	}
}

func TestDiscoverFallsBackToEnv(t *testing.T) {
	t.Setenv("VNLIB_COMPRESS_DLL_PATH", "/opt/env/libvnlib_compress.so")

	got := native.Discover("")
	if got != "/opt/env/libvnlib_compress.so" {
		t.Fatalf("expected env path, got %q", got)
	}
}

func TestDiscoverFallsBackToDefaultName(t *testing.T) {
	t.Setenv("VNLIB_COMPRESS_DLL_PATH", "")

	got := native.Discover("")
	if got != "vnlib_compress" {
		t.Fatalf("expected default name, got %q", got)
	}
}

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

package logger_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	liblog "github.com/nabbar/vnhost/logger"
)

func TestNewWritesToProvidedWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	l := liblog.New(logrus.InfoLevel, buf)

	l.Infof("listener bound to %s", "127.0.0.1:0")

	if !strings.Contains(buf.String(), "listener bound to 127.0.0.1:0") {
		t.Fatalf("expected message in log output, got %q", buf.String())
	}
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	buf := &bytes.Buffer{}
	l := liblog.New(logrus.InfoLevel, buf)

	child := l.WithFields(liblog.Fields{"conn": "abc"})
	child.Infof("accepted")

	if !strings.Contains(buf.String(), "conn=abc") {
		t.Fatalf("expected field in output, got %q", buf.String())
	}

	buf.Reset()
	l.Infof("parent")
	if strings.Contains(buf.String(), "conn=abc") {
		t.Fatalf("expected parent output without child field, got %q", buf.String())
	}
}

func TestNopIfNilNeverPanics(t *testing.T) {
	fn := liblog.NopIfNil(nil)
	l := fn()

	l.Debugf("should be discarded")
	l.Errorf("also discarded")
}

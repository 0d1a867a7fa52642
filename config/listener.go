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

// Package config defines the recognized configuration keys for the
// listener, compression and plugin subsystems and decodes them with
// spf13/viper, using a mitchellh/mapstructure decode hook (see Decode) to
// accept keepalive timings as duration strings ("30s"), matching the
// corpus's own configuration idiom (nabbar/golib's httpserver/config.go and
// socket/config package both decode through viper-populated structs).
package config

import (
	"net"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
)

// Listener is the exhaustive set of recognized TCP Listener Node options.
// BufferPool and OnSocketCreated are Go-level extension points set
// programmatically; they have no JSON/YAML representation.
type Listener struct {
	LocalAddress string `mapstructure:"local_endpoint" validate:"required"`
	Backlog      int    `mapstructure:"backlog" validate:"gte=0"`

	AcceptThreads     int  `mapstructure:"accept_threads" validate:"gte=1"`
	MaxRecvBufferData uint `mapstructure:"max_recv_buffer_data" validate:"gte=4096"`
	MaxConnections    int  `mapstructure:"max_connections" validate:"gte=0"`

	TCPKeepAlive         bool          `mapstructure:"tcp_keepalive"`
	TCPKeepAliveTime     time.Duration `mapstructure:"tcp_keepalive_time"`
	TCPKeepAliveInterval time.Duration `mapstructure:"keepalive_interval"`

	CacheQuota  int  `mapstructure:"cache_quota" validate:"gte=0"`
	DebugTCPLog bool `mapstructure:"debug_tcp_log"`

	// BufferPool supplies reusable byte buffers to the pipeline workers;
	// nil selects a package-default pool backed by sync.Pool.
	BufferPool BufferPool `mapstructure:"-"`

	// OnSocketCreated is invoked on the freshly created listening socket
	// for OS-specific tuning before Listen is called.
	OnSocketCreated func(network, address string, fd uintptr) error `mapstructure:"-"`
}

// BufferPool is the injected memory source handed to pipeline workers.
type BufferPool interface {
	Get() []byte
	Put([]byte)
}

// Defaults returns a Listener populated with recommended defaults
// (accept_threads=1, max_recv_buffer_data=64KiB) before configuration
// overrides are applied.
func Defaults() Listener {
	return Listener{
		Backlog:              128,
		AcceptThreads:        1,
		MaxRecvBufferData:    65536,
		MaxConnections:       0,
		TCPKeepAliveTime:     30 * time.Second,
		TCPKeepAliveInterval: 15 * time.Second,
		CacheQuota:           256,
	}
}

var validate = validator.New()

// Validate checks the Listener configuration against its field
// constraints and returns a validation warning describing any field that
// exceeds the number of logical processors, as a diagnostic rather than a
// hard error (accept_threads may legitimately be set higher for I/O-bound
// workloads).
func (l Listener) Validate() (warnings []string, err error) {
	if e := validate.Struct(l); e != nil {
		return nil, e
	}

	if _, _, e := net.SplitHostPort(l.LocalAddress); e != nil {
		return nil, e
	}

	if l.AcceptThreads > runtime.NumCPU() {
		warnings = append(warnings, "accept_threads exceeds the number of logical processors")
	}

	return warnings, nil
}

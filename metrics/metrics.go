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

// Package metrics holds the optional Prometheus collectors the listener,
// pipeline, compress and servicestack packages report through. Collectors
// are created and registered by the caller via New(reg), never against a
// package-level global registry, so an embedder controls exactly which
// registry they end up scraped from.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the set of collectors this module reports through. A nil
// *Metrics is valid everywhere one is accepted: every Observe* method on it
// is a no-op, so callers that do not want metrics simply pass nil.
type Metrics struct {
	ListenerAccepted          *prometheus.CounterVec
	ListenerRejected          *prometheus.CounterVec
	ListenerActiveConnections *prometheus.GaugeVec

	PipelineBytesRecv *prometheus.CounterVec
	PipelineBytesSend *prometheus.CounterVec

	CompressorOperations *prometheus.CounterVec

	PluginsLoaded      prometheus.Gauge
	PluginLoadAttempts *prometheus.CounterVec
}

// New builds a Metrics and registers every collector against reg. Pass
// prometheus.NewRegistry() for a private registry, or
// prometheus.DefaultRegisterer to join the process-wide default one.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ListenerAccepted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vnhost_listener_accepted_total",
			Help: "Total number of TCP connections accepted by a listener node.",
		}, []string{"address"}),

		ListenerRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vnhost_listener_rejected_total",
			Help: "Total number of accepted connections discarded without being published.",
		}, []string{"address", "reason"}),

		ListenerActiveConnections: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vnhost_listener_active_connections",
			Help: "Current number of accepted connections not yet released.",
		}, []string{"address"}),

		PipelineBytesRecv: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vnhost_pipeline_bytes_received_total",
			Help: "Total bytes read from the socket into the recv pipe.",
		}, []string{"address"}),

		PipelineBytesSend: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vnhost_pipeline_bytes_sent_total",
			Help: "Total bytes written from the send pipe to the socket.",
		}, []string{"address"}),

		CompressorOperations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vnhost_compressor_operations_total",
			Help: "Total compress/decompress native calls, by method and result.",
		}, []string{"method", "result"}),

		PluginsLoaded: f.NewGauge(prometheus.GaugeOpts{
			Name: "vnhost_plugins_loaded",
			Help: "Current number of loaded plugins.",
		}),

		PluginLoadAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vnhost_plugin_load_attempts_total",
			Help: "Total number of plugin load attempts.",
		}, []string{"result"}), // "ok" or "error"
	}
}

// ObserveAccepted records one accepted connection and the resulting
// active-connection count for address.
func (m *Metrics) ObserveAccepted(address string, activeAfter int64) {
	if m == nil {
		return
	}
	m.ListenerAccepted.WithLabelValues(address).Inc()
	m.ListenerActiveConnections.WithLabelValues(address).Set(float64(activeAfter))
}

// ObserveRejected records one discarded accepted connection and why.
func (m *Metrics) ObserveRejected(address, reason string) {
	if m == nil {
		return
	}
	m.ListenerRejected.WithLabelValues(address, reason).Inc()
}

// ObserveClosed records the active-connection count after a connection is
// released back to the node.
func (m *Metrics) ObserveClosed(address string, activeAfter int64) {
	if m == nil {
		return
	}
	m.ListenerActiveConnections.WithLabelValues(address).Set(float64(activeAfter))
}

// ObserveBytesRecv records n bytes moved from the socket into the recv pipe
// for the connection bound to address.
func (m *Metrics) ObserveBytesRecv(address string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PipelineBytesRecv.WithLabelValues(address).Add(float64(n))
}

// ObserveBytesSend records n bytes moved from the send pipe to the socket
// for the connection bound to address.
func (m *Metrics) ObserveBytesSend(address string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PipelineBytesSend.WithLabelValues(address).Add(float64(n))
}

// ObserveCompressorOp records one native compress/decompress call.
func (m *Metrics) ObserveCompressorOp(method, result string) {
	if m == nil {
		return
	}
	m.CompressorOperations.WithLabelValues(method, result).Inc()
}

// ObservePluginLoadAttempt records one plugin load attempt and the
// resulting total loaded-plugin count.
func (m *Metrics) ObservePluginLoadAttempt(ok bool, loadedAfter int) {
	if m == nil {
		return
	}
	if ok {
		m.PluginLoadAttempts.WithLabelValues("ok").Inc()
	} else {
		m.PluginLoadAttempts.WithLabelValues("error").Inc()
	}
	m.PluginsLoaded.Set(float64(loadedAfter))
}

// ObservePluginsLoaded updates the loaded-plugin gauge without recording a
// load attempt (used by TeardownAll, which is not itself an attempt).
func (m *Metrics) ObservePluginsLoaded(loaded int) {
	if m == nil {
		return
	}
	m.PluginsLoaded.Set(float64(loaded))
}

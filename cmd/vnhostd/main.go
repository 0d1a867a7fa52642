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

// Command vnhostd is a thin composition root wiring config, the listener
// node, the compressor manager and the service stack together for manual
// smoke testing. It is not exercised by the test suite.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/nabbar/vnhost/compress"
	"github.com/nabbar/vnhost/compress/native"
	"github.com/nabbar/vnhost/config"
	"github.com/nabbar/vnhost/logger"
	"github.com/nabbar/vnhost/metrics"
	"github.com/nabbar/vnhost/servicestack"
	"github.com/nabbar/vnhost/servicestack/fsdiscovery"
)

func main() {
	log := logger.New(logrus.InfoLevel, os.Stderr)
	defLog := func() logger.Logger { return log }

	v := viper.New()
	v.SetConfigName("vnhost")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if path := os.Getenv("VNHOST_CONFIG"); path != "" {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		log.Warnf("vnhostd: no configuration file loaded, using defaults: %v", err)
	}

	root, err := config.Decode(v)
	if err != nil {
		log.Errorf("vnhostd: decode configuration: %v", err)
		os.Exit(1)
	}
	if warnings, err := root.Listener.Validate(); err != nil {
		log.Errorf("vnhostd: invalid listener configuration: %v", err)
		os.Exit(1)
	} else {
		for _, w := range warnings {
			log.Warnf("vnhostd: %s", w)
		}
	}

	reg := prometheus.NewRegistry()
	met := metrics.New(reg)
	go serveMetrics(reg, defLog)

	openCompressor(root.Compression(), met, defLog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	disc := fsdiscovery.New(root.Plugin.Path, root.Plugin.HotReload, defLog)
	loader := func(path string) (*servicestack.ManagedPlugin, error) {
		return servicestack.NewManagedPlugin(path, nil, nil, nil)
	}
	pm := servicestack.NewPluginManager(disc, loader, defLog, met)

	srv := &nodeServer{cfg: root.Listener, log: defLog, met: met}
	group := servicestack.NewServiceGroup(root.Listener.LocalAddress, srv, defLog)
	stack := servicestack.New([]*servicestack.ServiceGroup{group}, pm, defLog)

	if err := stack.StartServers(ctx); err != nil {
		log.Errorf("vnhostd: start_servers: %v", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Infof("vnhostd: shutting down")
	wait, err := stack.StopAndWaitAsync()
	if err != nil {
		log.Errorf("vnhostd: stop_and_wait_async: %v", err)
		os.Exit(1)
	}

	select {
	case <-wait:
	case <-time.After(30 * time.Second):
		log.Warnf("vnhostd: shutdown timed out")
	}
}

func serveMetrics(reg *prometheus.Registry, defLog logger.FuncLog) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(":9090", mux); err != nil {
		defLog().Warnf("vnhostd: metrics server exited: %v", err)
	}
}

func openCompressor(cfg config.Compression, met *metrics.Metrics, defLog logger.FuncLog) {
	lib, err := native.Open(cfg.LibPath)
	if err != nil {
		defLog().Warnf("vnhostd: open native compression library %q: %v", native.Discover(cfg.LibPath), err)
		return
	}

	mgr := compress.NewManager(lib, met)
	methods, err := mgr.GetSupportedMethods()
	if err != nil {
		defLog().Warnf("vnhostd: query supported compression methods: %v", err)
		return
	}
	defLog().Infof("vnhostd: loaded compression library %q, methods=%v", native.Discover(cfg.LibPath), methods.Methods())
}

// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kernel

import (
	"context"
	"net"
	"net/http"

	"golang.org/x/net/netutil"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/retrokernel/v6core/proctab"
)

// maxMetricsConns bounds how many scrapers can hold the /metrics
// listener open at once, so a wedged or malicious client can't starve
// Prometheus's own scrape out by parking connections open.
const maxMetricsConns = 8

var (
	coreFreeClicks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "v6core_core_free_clicks",
		Help: "Free units remaining in the core-memory click allocator.",
	})
	swapFreeClicks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "v6core_swap_free_clicks",
		Help: "Free units remaining in the swap-space click allocator.",
	})
	residentProcesses = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "v6core_resident_processes",
		Help: "Processes currently holding FlagLoad (resident in core).",
	})
	totalProcesses = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "v6core_processes",
		Help: "Total processes in the process table.",
	})
)

// refreshMetrics samples Kernel's resource allocators and process table
// into the gauges above. It is cheap enough to call on every scrape.
func (k *Kernel) refreshMetrics() {
	coreFreeClicks.Set(float64(k.Core.FreeSpace()))
	swapFreeClicks.Set(float64(k.Swap.FreeSpace()))

	procs := k.Procs.Snapshot()
	totalProcesses.Set(float64(len(procs)))

	resident := 0
	for _, p := range procs {
		p.Mu.Lock()
		if p.Flags&proctab.FlagLoad != 0 {
			resident++
		}
		p.Mu.Unlock()
	}
	residentProcesses.Set(float64(resident))
}

// ServeMetrics starts the Prometheus /metrics endpoint at addr, refreshing
// the gauges on every scrape, until ctx is cancelled.
func (k *Kernel) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		k.refreshMetrics()
		http.Redirect(w, r, "/metrics", http.StatusFound)
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ln = netutil.LimitListener(ln, maxMetricsConns)

	server := &http.Server{Addr: addr, Handler: withRefresh(k, mux)}

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	err = server.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func withRefresh(k *Kernel, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		k.refreshMetrics()
		next.ServeHTTP(w, r)
	})
}

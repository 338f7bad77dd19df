// Package metrics exposes Prometheus counters for every pipeline stage.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "snapshot_fetch_attempts_total", Help: "Upstream market data calls issued"},
		[]string{"call"},
	)
	DegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "snapshot_degraded_total", Help: "Snapshot parts substituted with empty defaults"},
		[]string{"call"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Signals produced by generator backend"},
		[]string{"source", "action"},
	)
	RoutesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "routes_total", Help: "Routing actions by target and result"},
		[]string{"target", "result"},
	)
	BundlesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bundles_total", Help: "Bundle staging and submission results"},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(FetchAttemptsTotal, DegradedTotal, SignalsTotal, RoutesTotal, BundlesTotal)
}

// Serve exposes /metrics on addr in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

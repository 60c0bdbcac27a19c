// Package metrics exposes Prometheus collectors for the signal pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Alerts translated into inputs"},
		[]string{"source"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders submitted or settled"},
		[]string{"market", "side"},
	)
	ReplayErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "replay_errors_total", Help: "Alert records rejected during replay"},
		[]string{"kind"},
	)
	Equity = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "paper_equity", Help: "Full balance of the paper account"},
	)
)

func init() {
	prometheus.MustRegister(SignalsTotal, OrdersTotal, ReplayErrorsTotal, Equity)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

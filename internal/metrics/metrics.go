// Package metrics holds the Prometheus collectors shared by the site.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// GatewayCalls counts calls to Supabase and EmailJS by operation and outcome.
	GatewayCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "site",
		Name:      "gateway_calls_total",
		Help:      "Calls to remote collaborators by operation and outcome.",
	}, []string{"op", "outcome"})

	// RequestDuration observes HTTP handler latency.
	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "site",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method, route pattern and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	// CacheRefreshed records the last successful refresh per collection.
	CacheRefreshed = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "site",
		Name:      "cache_last_refresh_timestamp_seconds",
		Help:      "Unix time of the last successful refresh per collection.",
	}, []string{"collection"})
)

// Register adds all collectors to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{GatewayCalls, RequestDuration, CacheRefreshed} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Observe records the outcome of one gateway call.
func Observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	GatewayCalls.WithLabelValues(op, outcome).Inc()
}

// Refreshed marks collection as refreshed at t.
func Refreshed(collection string, t time.Time) {
	CacheRefreshed.WithLabelValues(collection).Set(float64(t.Unix()))
}

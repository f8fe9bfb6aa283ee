// Package metrics defines the Prometheus metrics exposed on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stocktrail_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stocktrail_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	MutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stocktrail_inventory_mutations_total",
			Help: "Committed inventory mutations by action",
		},
		[]string{"action"},
	)

	AuthFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stocktrail_auth_failures_total",
			Help: "Rejected authentication attempts (bad credentials or tokens)",
		},
	)
)

func init() {
	prometheus.MustRegister(RequestDuration, RequestsTotal, MutationsTotal, AuthFailuresTotal)
}

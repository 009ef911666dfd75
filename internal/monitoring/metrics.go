// Package monitoring exposes Prometheus metrics for the proxy.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aiproxy_requests_total",
			Help: "Total number of proxied client requests",
		},
		[]string{"provider", "status"},
	)

	UpstreamAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aiproxy_upstream_attempts_total",
			Help: "Total number of upstream attempts, including retries",
		},
		[]string{"provider"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aiproxy_request_duration_seconds",
			Help:    "Client request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "status_class"},
	)

	InFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aiproxy_http_inflight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	CredentialReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aiproxy_credential_reloads_total",
			Help: "Total number of credential pool reloads",
		},
		[]string{"trigger"},
	)

	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aiproxy_token_refreshes_total",
			Help: "Total number of OAuth token refreshes",
		},
		[]string{"status"},
	)
)

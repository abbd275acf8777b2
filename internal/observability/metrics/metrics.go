// Package metrics provides Prometheus instrumentation for the verification
// service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled bool

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Verification domain metrics
	verificationTotal *prometheus.CounterVec

	// Compiler manager metrics
	compilerFetchTotal *prometheus.CounterVec
)

// Init initializes the metrics system.
func Init(enabledFlag bool) {
	enabled = enabledFlag

	if !enabled {
		return
	}

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verification_http_requests_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	verificationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_request_total",
			Help: "Total number of verification requests",
		},
		[]string{"chain_id", "status"},
	)

	compilerFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compiler_fetch_total",
			Help: "Total number of compiler binary downloads",
		},
		[]string{"status"},
	)

	// Go runtime metrics (goroutines, memory, GC) are collected by
	// prometheus/client_golang automatically.
}

// ObserveVerification records the outcome of one verification request.
// chainID has no functional meaning; an absent chain id becomes the empty
// label, matching how requests arrive.
func ObserveVerification(chainID, status string) {
	if !enabled {
		return
	}
	verificationTotal.WithLabelValues(chainID, status).Inc()
}

// ObserveCompilerFetch records the outcome of one compiler download.
func ObserveCompilerFetch(status string) {
	if !enabled {
		return
	}
	compilerFetchTotal.WithLabelValues(status).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.Handler()
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

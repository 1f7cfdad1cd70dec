package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for proxy observability.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec   // Relayed requests by operation and outcome
	RequestDuration   *prometheus.HistogramVec // Upstream latency by operation
	ResyncsTotal      prometheus.Counter       // Completed upstream resyncs
	ResyncErrorsTotal prometheus.Counter       // Failed upstream resyncs
	MirroredTools     prometheus.Gauge         // Tools currently mirrored from upstream
}

// NewMetrics creates Prometheus metrics for a proxy instance.
// The registerer parameter allows flexible registration (global registry, test registry).
// The upstream parameter identifies the proxied endpoint via ConstLabels.
func NewMetrics(reg prometheus.Registerer, upstream string) *Metrics {
	constLabels := prometheus.Labels{"upstream": upstream}

	requestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "mcpcall_proxy_requests_total",
		Help:        "Total number of requests relayed to the upstream endpoint",
		ConstLabels: constLabels,
	}, []string{"operation", "outcome"})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "mcpcall_proxy_request_duration_seconds",
		Help:        "Latency of upstream operations",
		ConstLabels: constLabels,
		Buckets:     prometheus.DefBuckets,
	}, []string{"operation"})

	resyncsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "mcpcall_proxy_resyncs_total",
		Help:        "Total number of completed upstream capability resyncs",
		ConstLabels: constLabels,
	})

	resyncErrorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "mcpcall_proxy_resync_errors_total",
		Help:        "Total number of failed upstream capability resyncs",
		ConstLabels: constLabels,
	})

	mirroredTools := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "mcpcall_proxy_mirrored_tools",
		Help:        "Number of tools currently mirrored from the upstream endpoint",
		ConstLabels: constLabels,
	})

	reg.MustRegister(requestsTotal)
	reg.MustRegister(requestDuration)
	reg.MustRegister(resyncsTotal)
	reg.MustRegister(resyncErrorsTotal)
	reg.MustRegister(mirroredTools)

	return &Metrics{
		RequestsTotal:     requestsTotal,
		RequestDuration:   requestDuration,
		ResyncsTotal:      resyncsTotal,
		ResyncErrorsTotal: resyncErrorsTotal,
		MirroredTools:     mirroredTools,
	}
}

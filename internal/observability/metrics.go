package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consentgate_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "consentgate_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// consent decisions persisted, labelled by decision and source (user/auto)
	DecisionCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consentgate_decisions_total",
			Help: "Total consent decisions persisted",
		},
		[]string{"decision", "source"},
	)

	// geolocation lookups labelled by outcome (hit, miss, error, timeout)
	GeoLookupCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consentgate_geo_lookups_total",
			Help: "Total geolocation lookups",
		},
		[]string{"outcome"},
	)

	// geolocation lookup latency in seconds
	GeoLookupLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "consentgate_geo_lookup_duration_seconds",
			Help:    "Histogram of geolocation lookup latencies",
			Buckets: prometheus.DefBuckets,
		},
	)

	// banner fragments served
	BannerRenderCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "consentgate_banner_renders_total",
			Help: "Total consent banner fragments served",
		},
	)

	// consent store write failures per backend
	StoreWriteErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consentgate_store_write_errors_total",
			Help: "Total consent store write failures",
		},
		[]string{"backend"},
	)

	// analytics bootstrap attempts labelled by outcome (started, already_started)
	AnalyticsBootstrapCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consentgate_analytics_bootstrap_total",
			Help: "Total analytics bootstrap attempts",
		},
		[]string{"outcome"},
	)

	// audit trail write failures
	AuditWriteErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "consentgate_audit_write_errors_total",
			Help: "Total consent audit trail write failures",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		DecisionCount,
		GeoLookupCount,
		GeoLookupLatency,
		BannerRenderCount,
		StoreWriteErrors,
		AnalyticsBootstrapCount,
		AuditWriteErrors,
	)
}

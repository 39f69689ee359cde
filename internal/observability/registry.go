package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics
// so components depend on an injected registry rather than package globals.
type MetricsRegistry interface {
	// HTTP request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Consent decision metrics
	IncrementDecisions(decision, source string)

	// Geolocation metrics
	IncrementGeoLookups(outcome string)
	RecordGeoLookupLatency(duration time.Duration)

	// Presentation metrics
	IncrementBannerRenders()

	// Persistence metrics
	IncrementStoreWriteErrors(backend string)
	IncrementAuditWriteErrors()

	// Analytics bootstrap metrics
	IncrementAnalyticsBootstrap(outcome string)
}

// PrometheusRegistry implements MetricsRegistry on top of the package-level
// Prometheus collectors.
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry.
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementDecisions(decision, source string) {
	DecisionCount.WithLabelValues(decision, source).Inc()
}

func (r *PrometheusRegistry) IncrementGeoLookups(outcome string) {
	GeoLookupCount.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRegistry) RecordGeoLookupLatency(duration time.Duration) {
	GeoLookupLatency.Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementBannerRenders() {
	BannerRenderCount.Inc()
}

func (r *PrometheusRegistry) IncrementStoreWriteErrors(backend string) {
	StoreWriteErrors.WithLabelValues(backend).Inc()
}

func (r *PrometheusRegistry) IncrementAuditWriteErrors() {
	AuditWriteErrors.Inc()
}

func (r *PrometheusRegistry) IncrementAnalyticsBootstrap(outcome string) {
	AnalyticsBootstrapCount.WithLabelValues(outcome).Inc()
}

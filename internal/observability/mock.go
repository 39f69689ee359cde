package observability

import "time"

// MockMetricsRegistry is a no-op implementation of MetricsRegistry for testing.
type MockMetricsRegistry struct{}

func (m *MockMetricsRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (m *MockMetricsRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (m *MockMetricsRegistry) IncrementDecisions(decision, source string)                           {}
func (m *MockMetricsRegistry) IncrementGeoLookups(outcome string)                                   {}
func (m *MockMetricsRegistry) RecordGeoLookupLatency(duration time.Duration)                        {}
func (m *MockMetricsRegistry) IncrementBannerRenders()                                              {}
func (m *MockMetricsRegistry) IncrementStoreWriteErrors(backend string)                             {}
func (m *MockMetricsRegistry) IncrementAuditWriteErrors()                                           {}
func (m *MockMetricsRegistry) IncrementAnalyticsBootstrap(outcome string)                           {}

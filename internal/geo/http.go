package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/consentgate/consentgate/internal/observability"
)

// HTTPProvider resolves locations through a remote geolocation endpoint.
// Responses are cached per IP for a configurable TTL so a busy site does
// not hammer the provider; the consent engine additionally memoizes the
// result for the lifetime of a page load.
type HTTPProvider struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	cache      map[string]cachedRecord
	cacheMu    sync.RWMutex
	cacheTTL   time.Duration
	logger     *zap.Logger
	metrics    observability.MetricsRegistry
}

type cachedRecord struct {
	record  Record
	fetched time.Time
}

// NewHTTPProvider creates a provider for the given endpoint. timeout bounds
// each lookup; cacheTTL bounds how long a resolved record is reused per IP.
func NewHTTPProvider(endpoint string, timeout, cacheTTL time.Duration, logger *zap.Logger, metrics observability.MetricsRegistry) *HTTPProvider {
	return &HTTPProvider{
		endpoint:   endpoint,
		timeout:    timeout,
		httpClient: &http.Client{},
		cache:      make(map[string]cachedRecord),
		cacheTTL:   cacheTTL,
		logger:     logger,
		metrics:    metrics,
	}
}

// Resolve performs one lookup for ip. The lookup is bounded by the
// provider's timeout via context cancellation; the timer is released as
// soon as the response arrives. Timeouts, transport errors, non-2xx
// statuses and malformed bodies all collapse into ErrUnavailable.
func (p *HTTPProvider) Resolve(ctx context.Context, ip string) (Record, error) {
	p.cacheMu.RLock()
	cached, ok := p.cache[ip]
	p.cacheMu.RUnlock()
	if ok && time.Since(cached.fetched) < p.cacheTTL {
		p.metrics.IncrementGeoLookups("cache_hit")
		return cached.record, nil
	}

	rec, err := p.lookup(ctx, ip)
	if err != nil {
		return Record{}, err
	}

	p.cacheMu.Lock()
	p.cache[ip] = cachedRecord{record: rec, fetched: time.Now()}
	p.cacheMu.Unlock()

	return rec, nil
}

// lookup makes the actual HTTP call to the geolocation endpoint.
func (p *HTTPProvider) lookup(ctx context.Context, ip string) (Record, error) {
	start := time.Now()
	outcome := "success"
	defer func() {
		p.metrics.RecordGeoLookupLatency(time.Since(start))
		p.metrics.IncrementGeoLookups(outcome)
	}()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.lookupURL(ip), nil)
	if err != nil {
		outcome = "error"
		return Record{}, fmt.Errorf("%w: create request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			outcome = "timeout"
		} else {
			outcome = "error"
		}
		p.logger.Warn("geolocation lookup failed", zap.String("ip", ip), zap.Error(err))
		return Record{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil && p.logger != nil {
			p.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = "error"
		p.logger.Warn("geolocation lookup non-success status",
			zap.String("ip", ip),
			zap.Int("status", resp.StatusCode))
		return Record{}, fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
	}

	var body payload
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		outcome = "error"
		p.logger.Warn("geolocation response malformed", zap.String("ip", ip), zap.Error(err))
		return Record{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	return body.normalize(), nil
}

// lookupURL appends the visitor IP as a query parameter.
func (p *HTTPProvider) lookupURL(ip string) string {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return p.endpoint
	}
	q := u.Query()
	q.Set("ip", ip)
	u.RawQuery = q.Encode()
	return u.String()
}

// ClearCache drops all cached records.
func (p *HTTPProvider) ClearCache() {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	p.cache = make(map[string]cachedRecord)
}

// SetEndpoint overrides the lookup endpoint (for testing).
func (p *HTTPProvider) SetEndpoint(endpoint string) {
	p.endpoint = endpoint
}

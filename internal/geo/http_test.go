package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/consentgate/consentgate/internal/observability"
)

func newTestProvider(t *testing.T, endpoint string, timeout time.Duration) *HTTPProvider {
	t.Helper()
	return NewHTTPProvider(endpoint, timeout, time.Minute, zaptest.NewLogger(t), &observability.MockMetricsRegistry{})
}

func TestHTTPProvider_Resolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "203.0.113.9", r.URL.Query().Get("ip"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"country_code":"de","country":"Germany","region":"Bavaria","city":"Munich"}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, time.Second)
	rec, err := p.Resolve(context.Background(), "203.0.113.9")

	require.NoError(t, err)
	assert.Equal(t, "DE", rec.Country, "country_code wins over country and is uppercased")
	assert.Equal(t, "Bavaria", rec.Region)
	assert.Equal(t, "Munich", rec.City)
}

func TestHTTPProvider_CountryNameFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"country":"jp"}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, time.Second)
	rec, err := p.Resolve(context.Background(), "198.51.100.1")

	require.NoError(t, err)
	assert.Equal(t, "JP", rec.Country)
}

func TestHTTPProvider_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, time.Second)
	_, err := p.Resolve(context.Background(), "198.51.100.1")

	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPProvider_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, time.Second)
	_, err := p.Resolve(context.Background(), "198.51.100.1")

	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPProvider_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	p := newTestProvider(t, srv.URL, 50*time.Millisecond)

	start := time.Now()
	_, err := p.Resolve(context.Background(), "198.51.100.1")

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Less(t, time.Since(start), time.Second, "timeout must cancel the request promptly")
}

func TestHTTPProvider_CachesPerIP(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"country_code":"FR"}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec, err := p.Resolve(ctx, "203.0.113.9")
		require.NoError(t, err)
		assert.Equal(t, "FR", rec.Country)
	}
	assert.Equal(t, int64(1), hits.Load())

	// different IP misses the cache
	_, err := p.Resolve(ctx, "203.0.113.10")
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())

	p.ClearCache()
	_, err = p.Resolve(ctx, "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, int64(3), hits.Load())
}

func TestHTTPProvider_FailuresAreNotCached(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"country_code":"NO"}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, time.Second)
	ctx := context.Background()

	_, err := p.Resolve(ctx, "198.51.100.1")
	assert.ErrorIs(t, err, ErrUnavailable)

	rec, err := p.Resolve(ctx, "198.51.100.1")
	require.NoError(t, err)
	assert.Equal(t, "NO", rec.Country)
}

func TestPayloadNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   payload
		want Record
	}{
		{"code preferred", payload{CountryCode: "de", Country: "Germany"}, Record{Country: "DE"}},
		{"name fallback", payload{Country: "fr"}, Record{Country: "FR"}},
		{"whitespace trimmed", payload{CountryCode: " us ", Region: " Oregon "}, Record{Country: "US", Region: "Oregon"}},
		{"empty", payload{}, Record{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.normalize())
		})
	}
}

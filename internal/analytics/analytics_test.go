package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consentgate/consentgate/internal/geo"
	"github.com/consentgate/consentgate/internal/models"
	"github.com/consentgate/consentgate/internal/observability"
)

func TestEnsureStarted_Idempotent(t *testing.T) {
	a := &Analytics{Metrics: &observability.MockMetricsRegistry{}}
	ctx := context.Background()

	assert.False(t, a.Started())

	a.EnsureStarted(ctx)
	assert.True(t, a.Started())

	// repeat calls must be no-ops
	a.EnsureStarted(ctx)
	a.EnsureStarted(ctx)
	assert.True(t, a.Started())
}

func TestEnsureStarted_ConcurrentCallers(t *testing.T) {
	a := &Analytics{Metrics: &observability.MockMetricsRegistry{}}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.EnsureStarted(ctx)
		}()
	}
	wg.Wait()

	assert.True(t, a.Started())
}

func TestEnsureStarted_NilReceiver(t *testing.T) {
	var a *Analytics
	a.EnsureStarted(context.Background())
	assert.False(t, a.Started())
}

func TestRecordConsentEvent_UnavailableBeforeBootstrap(t *testing.T) {
	a := &Analytics{Metrics: &observability.MockMetricsRegistry{}}

	err := a.RecordConsentEvent(context.Background(), ConsentEvent{EventType: "consent_decision"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRecordConsentEvent_UnavailableWithoutDB(t *testing.T) {
	a := &Analytics{Metrics: &observability.MockMetricsRegistry{}}
	a.EnsureStarted(context.Background())

	err := a.RecordConsentEvent(context.Background(), ConsentEvent{EventType: "consent_decision"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewConsentEvent(t *testing.T) {
	loc := geo.Record{Country: "DE", Region: "Bavaria"}
	ev := NewConsentEvent("v-1", models.DecisionGranted, models.SourceUser,
		loc, "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)")

	assert.Equal(t, "consent_decision", ev.EventType)
	assert.Equal(t, "v-1", ev.VisitorID)
	assert.Equal(t, models.DecisionGranted, ev.Decision)
	assert.Equal(t, "user", ev.Source)
	assert.False(t, ev.Timestamp.IsZero())

	require.NotNil(t, ev.Country)
	assert.Equal(t, "DE", *ev.Country)
	require.NotNil(t, ev.Region)
	assert.Equal(t, "Bavaria", *ev.Region)
	require.NotNil(t, ev.DeviceType)
	assert.Equal(t, "mobile", *ev.DeviceType)
}

func TestNewConsentEvent_OmitsEmptyFields(t *testing.T) {
	ev := NewConsentEvent("v-1", models.DecisionGranted, models.SourceAuto, geo.Record{}, "")

	assert.Equal(t, "auto", ev.Source)
	assert.Nil(t, ev.Country)
	assert.Nil(t, ev.Region)
	assert.Nil(t, ev.DeviceType)
}

func TestDeviceType(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want string
	}{
		{"desktop chrome", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36", "desktop"},
		{"iphone", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15", "mobile"},
		{"ipad", "Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X) AppleWebKit/605.1.15", "tablet"},
		{"empty", "", "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeviceType(tt.ua))
		})
	}
}

func TestMockAnalytics_RecordFailure(t *testing.T) {
	m := NewMockAnalytics()
	m.RecordErr = errors.New("sink down")

	err := m.RecordConsentEvent(context.Background(), ConsentEvent{})
	assert.Error(t, err)
	assert.Empty(t, m.Recorded())
}

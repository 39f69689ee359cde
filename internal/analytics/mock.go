package analytics

import (
	"context"
	"sync"
	"sync/atomic"
)

var _ Service = (*MockAnalytics)(nil)

// MockAnalytics is an in-memory Service implementation for testing. It
// counts bootstrap attempts and captures recorded events.
type MockAnalytics struct {
	started       atomic.Bool
	StartedCalls  atomic.Int64
	eventsMu      sync.Mutex
	Events        []ConsentEvent
	RecordErr     error
	FailRecording bool
}

// NewMockAnalytics creates a new mock analytics instance.
func NewMockAnalytics() *MockAnalytics {
	return &MockAnalytics{}
}

// EnsureStarted flips the flag and counts every invocation so tests can
// assert "exactly once" semantics at the caller.
func (m *MockAnalytics) EnsureStarted(ctx context.Context) {
	m.StartedCalls.Add(1)
	m.started.Store(true)
}

// Started reports whether EnsureStarted has run.
func (m *MockAnalytics) Started() bool {
	return m.started.Load()
}

// RecordConsentEvent captures the event.
func (m *MockAnalytics) RecordConsentEvent(ctx context.Context, ev ConsentEvent) error {
	if m.FailRecording {
		return ErrUnavailable
	}
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()
	m.Events = append(m.Events, ev)
	return nil
}

// Recorded returns a copy of the captured events.
func (m *MockAnalytics) Recorded() []ConsentEvent {
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()
	out := make([]ConsentEvent, len(m.Events))
	copy(out, m.Events)
	return out
}

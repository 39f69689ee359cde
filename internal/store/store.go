// Package store persists consent decisions. Two backends exist: a Redis
// store keyed by visitor ID (primary) and a browser cookie (secondary).
// They form an at-most-eventually-consistent mirrored pair: reads follow a
// fixed precedence, writes go to every backend on a best-effort basis.
package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/consentgate/consentgate/internal/models"
	"github.com/consentgate/consentgate/internal/observability"
)

// Key is the logical storage key for the consent decision. The Redis
// backend namespaces it by visitor ID; the cookie backend uses it as the
// cookie name unless configured otherwise.
const Key = "cookie-consent"

// Store is one consent persistence backend.
type Store interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Get returns the stored decision for the visitor, or DecisionUnknown
	// when no value is present. An error means the backend could not be
	// read at all; callers treat that the same as no value.
	Get(ctx context.Context, visitorID string) (models.Decision, error)
	// Set records the decision for the visitor.
	Set(ctx context.Context, visitorID string, decision models.Decision) error
}

// Multi combines backends with primary-first read precedence and mirrored
// best-effort writes.
type Multi struct {
	backends []Store
	logger   *zap.Logger
	metrics  observability.MetricsRegistry
}

// NewMulti builds a Multi over backends in precedence order.
func NewMulti(logger *zap.Logger, metrics observability.MetricsRegistry, backends ...Store) *Multi {
	return &Multi{backends: backends, logger: logger, metrics: metrics}
}

// Name implements Store.
func (m *Multi) Name() string { return "multi" }

// Get returns the first known decision in precedence order. A backend that
// fails to read is logged and skipped; storage being unavailable is never
// fatal, it just means "unknown".
func (m *Multi) Get(ctx context.Context, visitorID string) (models.Decision, error) {
	for _, b := range m.backends {
		d, err := b.Get(ctx, visitorID)
		if err != nil {
			m.logger.Warn("consent store read failed",
				zap.String("backend", b.Name()),
				zap.Error(err))
			continue
		}
		if d.Known() {
			return d, nil
		}
	}
	return models.DecisionUnknown, nil
}

// Set mirrors the decision to every backend. Failures are logged and
// counted, never returned: the decision is considered set for this page
// load even if persistence silently failed.
func (m *Multi) Set(ctx context.Context, visitorID string, decision models.Decision) error {
	for _, b := range m.backends {
		if err := b.Set(ctx, visitorID, decision); err != nil {
			m.logger.Warn("consent store write failed",
				zap.String("backend", b.Name()),
				zap.String("decision", decision.String()),
				zap.Error(err))
			m.metrics.IncrementStoreWriteErrors(b.Name())
		}
	}
	return nil
}

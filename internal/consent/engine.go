// Package consent implements the consent decision engine: it answers
// whether a visitor must be asked for consent and what their current
// recorded answer is.
package consent

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/consentgate/consentgate/internal/geo"
	"github.com/consentgate/consentgate/internal/models"
	"github.com/consentgate/consentgate/internal/observability"
	"github.com/consentgate/consentgate/internal/store"
)

// Bootstrap is the analytics-bootstrap collaborator. EnsureStarted must be
// idempotent; Started reports whether the subsystem is already active.
type Bootstrap interface {
	EnsureStarted(ctx context.Context)
	Started() bool
}

// Auditor records persisted decisions to a durable trail. Implementations
// are best-effort: they log their own failures and never block the visitor
// path.
type Auditor interface {
	RecordDecision(ctx context.Context, visitorID string, decision models.Decision, source models.DecisionSource, loc geo.Record)
}

// Outcome is the terminal state reached by Initialize for one page load.
type Outcome string

const (
	// OutcomeStoredHonored means a previously persisted decision was found
	// and honored without any network call.
	OutcomeStoredHonored Outcome = "stored"
	// OutcomeAutoGranted means the jurisdiction does not require explicit
	// consent and a granted decision was persisted on the visitor's behalf.
	OutcomeAutoGranted Outcome = "auto_granted"
	// OutcomeBannerRequired means the visitor must be shown the banner;
	// nothing is persisted until they choose.
	OutcomeBannerRequired Outcome = "banner_required"
)

// Result is what Initialize hands the presentation layer.
type Result struct {
	Outcome  Outcome
	Decision models.Decision
}

// Params collects the engine's collaborators.
type Params struct {
	VisitorID string
	IP        string
	Store     store.Store
	Resolver  geo.Resolver
	Policy    *Policy
	Bootstrap Bootstrap
	Auditor   Auditor // optional
	Logger    *zap.Logger
	Metrics   observability.MetricsRegistry
}

// Engine owns the consent decision for a single page load. It memoizes the
// geolocation result, so construct a fresh instance per page load and share
// nothing between visitors.
type Engine struct {
	visitorID string
	ip        string
	store     store.Store
	resolver  geo.Resolver
	policy    *Policy
	bootstrap Bootstrap
	auditor   Auditor
	logger    *zap.Logger
	metrics   observability.MetricsRegistry

	geoMu        sync.Mutex
	geoResolved  bool
	geoAvailable bool
	geoRecord    geo.Record
}

// NewEngine constructs an Engine for one page load.
func NewEngine(p Params) *Engine {
	if p.Policy == nil {
		p.Policy = DefaultPolicy()
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return &Engine{
		visitorID: p.VisitorID,
		ip:        p.IP,
		store:     p.Store,
		resolver:  p.Resolver,
		policy:    p.Policy,
		bootstrap: p.Bootstrap,
		auditor:   p.Auditor,
		logger:    p.Logger,
		metrics:   p.Metrics,
	}
}

// StoredDecision reads the visitor's recorded decision. A failing or
// unavailable store is treated as "unknown", never as a fatal error.
func (e *Engine) StoredDecision(ctx context.Context) models.Decision {
	d, err := e.store.Get(ctx, e.visitorID)
	if err != nil {
		e.logger.Warn("consent store unavailable, treating as unknown",
			zap.String("visitor_id", e.visitorID),
			zap.Error(err))
		return models.DecisionUnknown
	}
	return d
}

// ResolveGeolocation performs at most one lookup per engine instance.
// The boolean reports availability; on any failure the zero Record is
// cached alongside available=false so subsequent calls stay local.
func (e *Engine) ResolveGeolocation(ctx context.Context) (geo.Record, bool) {
	e.geoMu.Lock()
	defer e.geoMu.Unlock()

	if e.geoResolved {
		return e.geoRecord, e.geoAvailable
	}
	e.geoResolved = true

	rec, err := e.resolver.Resolve(ctx, e.ip)
	if err != nil {
		e.logger.Warn("geolocation unavailable for this page load",
			zap.String("ip", e.ip),
			zap.Error(err))
		e.geoAvailable = false
		return geo.Record{}, false
	}
	e.geoRecord = rec
	e.geoAvailable = true
	return rec, true
}

// RequiresExplicitConsent evaluates the jurisdiction policy, failing closed:
// an unavailable location, an empty country, or any panic during evaluation
// all require consent.
func (e *Engine) RequiresExplicitConsent(ctx context.Context) (required bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("policy evaluation panicked, requiring consent", zap.Any("panic", r))
			required = true
		}
	}()

	rec, ok := e.ResolveGeolocation(ctx)
	if !ok || rec.Country == "" {
		return true
	}
	if e.policy.RegulatedCountry(rec.Country) {
		return true
	}
	if e.policy.RegulatedRegion(rec.Country, rec.Region) {
		return true
	}
	return false
}

// PersistDecision writes the decision to every backend and records it in
// the audit trail. Persistence is best-effort: the decision is considered
// set for this page load even when a backend write fails. Granting consent
// starts the analytics subsystem; the bootstrap's own flag prevents double
// initialization.
func (e *Engine) PersistDecision(ctx context.Context, decision models.Decision, source models.DecisionSource) {
	if err := e.store.Set(ctx, e.visitorID, decision); err != nil {
		e.logger.Warn("consent persist failed, keeping decision for this page load",
			zap.String("decision", decision.String()),
			zap.Error(err))
	}

	if e.metrics != nil {
		e.metrics.IncrementDecisions(decision.String(), string(source))
	}
	if e.auditor != nil {
		loc, _ := e.CachedLocation()
		e.auditor.RecordDecision(ctx, e.visitorID, decision, source, loc)
	}

	if decision == models.DecisionGranted && e.bootstrap != nil {
		e.bootstrap.EnsureStarted(ctx)
	}
}

// CachedLocation returns the memoized record without triggering a lookup.
// Persisting a stored or user decision must not cause network traffic.
func (e *Engine) CachedLocation() (geo.Record, bool) {
	e.geoMu.Lock()
	defer e.geoMu.Unlock()
	return e.geoRecord, e.geoResolved && e.geoAvailable
}

// Initialize runs the per-page-load orchestration:
//
//	stored decision present  -> honor it (granted re-arms analytics), done
//	jurisdiction unregulated -> auto-grant and persist
//	otherwise                -> banner required, persistence deferred to
//	                            the visitor's choice
//
// It is idempotent: a second call sees the stored decision or the memoized
// geolocation result and short-circuits.
func (e *Engine) Initialize(ctx context.Context) Result {
	if d := e.StoredDecision(ctx); d.Known() {
		if d == models.DecisionGranted && e.bootstrap != nil {
			e.bootstrap.EnsureStarted(ctx)
		}
		return Result{Outcome: OutcomeStoredHonored, Decision: d}
	}

	if !e.RequiresExplicitConsent(ctx) {
		e.PersistDecision(ctx, models.DecisionGranted, models.SourceAuto)
		return Result{Outcome: OutcomeAutoGranted, Decision: models.DecisionGranted}
	}

	return Result{Outcome: OutcomeBannerRequired, Decision: models.DecisionUnknown}
}

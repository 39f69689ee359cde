// Package analytics is the subsystem gated behind consent. It stays cold
// until the first granted decision flips the bootstrap flag, then records
// consent events into ClickHouse.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/consentgate/consentgate/internal/geo"
	"github.com/consentgate/consentgate/internal/models"
	"github.com/consentgate/consentgate/internal/observability"
)

// Service defines the analytics operations the rest of the system uses.
// Implementations report ErrUnavailable when underlying storage is not
// configured.
type Service interface {
	// EnsureStarted activates the analytics subsystem. It is idempotent:
	// callers may invoke it on every granted decision.
	EnsureStarted(ctx context.Context)
	// Started reports whether the subsystem is already active.
	Started() bool
	// RecordConsentEvent records one consent event row.
	RecordConsentEvent(ctx context.Context, ev ConsentEvent) error
}

// ConsentEvent mirrors a row in the consent_events table.
type ConsentEvent struct {
	Timestamp  time.Time       `json:"timestamp"`
	EventType  string          `json:"event_type"`
	VisitorID  string          `json:"visitor_id"`
	Decision   models.Decision `json:"decision"`
	Source     string          `json:"source"`
	Country    *string         `json:"country"`
	Region     *string         `json:"region"`
	DeviceType *string         `json:"device_type"`
}

// Analytics wraps a ClickHouse connection and the bootstrap gate.
type Analytics struct {
	DB      *sql.DB
	Metrics observability.MetricsRegistry

	started atomic.Bool
}

// ErrUnavailable is returned when the analytics DB is not configured.
var ErrUnavailable = fmt.Errorf("analytics unavailable")

// InitClickHouse connects to ClickHouse and ensures the consent_events
// table exists. The returned service starts in the not-started state; it
// records nothing until consent flips the gate.
func InitClickHouse(dsn string, metrics observability.MetricsRegistry) (*Analytics, error) {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(25)
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	create := `CREATE TABLE IF NOT EXISTS consent_events (
       timestamp   DateTime,
       event_type  String,
       visitor_id  String,
       decision    String,
       source      String,
       country     Nullable(String),
       region      Nullable(String),
       device_type Nullable(String)
   ) ENGINE=MergeTree() ORDER BY (event_type, timestamp)`
	if _, err := db.ExecContext(context.Background(), create); err != nil {
		return nil, fmt.Errorf("clickhouse create table: %w", err)
	}

	zap.L().Info("Connected to ClickHouse")
	return &Analytics{DB: db, Metrics: metrics}, nil
}

// EnsureStarted flips the bootstrap flag exactly once. Repeat calls are
// cheap no-ops, which is what lets every granted decision invoke it without
// double-initializing anything.
func (a *Analytics) EnsureStarted(ctx context.Context) {
	if a == nil {
		return
	}
	if !a.started.CompareAndSwap(false, true) {
		if a.Metrics != nil {
			a.Metrics.IncrementAnalyticsBootstrap("already_started")
		}
		return
	}
	if a.Metrics != nil {
		a.Metrics.IncrementAnalyticsBootstrap("started")
	}
	zap.L().Info("analytics bootstrap: subsystem started")
}

// Started reports whether the bootstrap has run.
func (a *Analytics) Started() bool {
	return a != nil && a.started.Load()
}

// RecordConsentEvent inserts a single event row. Events arriving before
// the bootstrap, or with no DB configured, yield ErrUnavailable.
func (a *Analytics) RecordConsentEvent(ctx context.Context, ev ConsentEvent) error {
	if a == nil || a.DB == nil {
		return ErrUnavailable
	}
	if !a.started.Load() {
		return ErrUnavailable
	}

	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	var country, region, device sql.NullString
	if ev.Country != nil && *ev.Country != "" {
		country = sql.NullString{String: *ev.Country, Valid: true}
	}
	if ev.Region != nil && *ev.Region != "" {
		region = sql.NullString{String: *ev.Region, Valid: true}
	}
	if ev.DeviceType != nil && *ev.DeviceType != "" {
		device = sql.NullString{String: *ev.DeviceType, Valid: true}
	}

	stmt := `INSERT INTO consent_events (timestamp, event_type, visitor_id, decision, source, country, region, device_type) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := a.DB.ExecContext(ctx, stmt, ev.Timestamp, ev.EventType, ev.VisitorID, string(ev.Decision), ev.Source, country, region, device); err != nil {
		zap.L().Error("clickhouse insert failed", zap.Error(err), zap.String("event_type", ev.EventType))
		return fmt.Errorf("insert %s event: %w", ev.EventType, err)
	}
	return nil
}

// NewConsentEvent assembles an event from a decision and its context.
func NewConsentEvent(visitorID string, decision models.Decision, source models.DecisionSource, loc geo.Record, userAgent string) ConsentEvent {
	ev := ConsentEvent{
		Timestamp: time.Now(),
		EventType: "consent_decision",
		VisitorID: visitorID,
		Decision:  decision,
		Source:    string(source),
	}
	if loc.Country != "" {
		ev.Country = &loc.Country
	}
	if loc.Region != "" {
		ev.Region = &loc.Region
	}
	if userAgent != "" {
		dt := DeviceType(userAgent)
		ev.DeviceType = &dt
	}
	return ev
}

// Close shuts down the ClickHouse connection.
func (a *Analytics) Close() {
	if a != nil && a.DB != nil {
		if err := a.DB.Close(); err != nil {
			zap.L().Error("clickhouse close", zap.Error(err))
		}
	}
}

// Package audit keeps the append-only trail of persisted consent
// decisions. The trail is for operators and compliance reviews; the
// visitor-facing path never depends on it succeeding.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/consentgate/consentgate/internal/geo"
	"github.com/consentgate/consentgate/internal/models"
	"github.com/consentgate/consentgate/internal/observability"
)

// schemaSQL sets up the audit table if it doesn't exist.
const schemaSQL = `CREATE TABLE IF NOT EXISTS consent_audit (
    id SERIAL PRIMARY KEY,
    visitor_id TEXT NOT NULL,
    decision TEXT NOT NULL,
    source TEXT NOT NULL,
    country TEXT,
    region TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS consent_audit_visitor_idx ON consent_audit (visitor_id, created_at);`

// Postgres wraps a postgres DB connection for the audit trail.
type Postgres struct {
	DB      *sql.DB
	logger  *zap.Logger
	metrics observability.MetricsRegistry
}

// InitPostgres opens the audit database through the otelsql wrapper and
// ensures the schema exists.
func InitPostgres(dsn string, logger *zap.Logger, metrics observability.MetricsRegistry) (*Postgres, error) {
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(
			attribute.String("db.system", "postgresql"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), schemaSQL); err != nil {
		return nil, fmt.Errorf("ensure audit schema: %w", err)
	}

	logger.Info("Connected to Postgres audit store")
	return &Postgres{DB: db, logger: logger, metrics: metrics}, nil
}

// RecordDecision appends one row to the trail. Failures are logged and
// counted, not returned: audit durability is best-effort by contract.
func (p *Postgres) RecordDecision(ctx context.Context, visitorID string, decision models.Decision, source models.DecisionSource, loc geo.Record) {
	if p == nil || p.DB == nil {
		return
	}

	var country, region sql.NullString
	if loc.Country != "" {
		country = sql.NullString{String: loc.Country, Valid: true}
	}
	if loc.Region != "" {
		region = sql.NullString{String: loc.Region, Valid: true}
	}

	const stmt = `INSERT INTO consent_audit (visitor_id, decision, source, country, region, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := p.DB.ExecContext(ctx, stmt, visitorID, string(decision), string(source), country, region, time.Now()); err != nil {
		p.logger.Error("audit insert failed",
			zap.String("visitor_id", visitorID),
			zap.String("decision", decision.String()),
			zap.Error(err))
		if p.metrics != nil {
			p.metrics.IncrementAuditWriteErrors()
		}
	}
}

// History returns the recorded decisions for a visitor, newest first.
func (p *Postgres) History(ctx context.Context, visitorID string, limit int) ([]Entry, error) {
	if p == nil || p.DB == nil {
		return nil, fmt.Errorf("audit store unavailable")
	}
	if limit <= 0 {
		limit = 50
	}

	const query = `SELECT visitor_id, decision, source, COALESCE(country, ''), COALESCE(region, ''), created_at
        FROM consent_audit WHERE visitor_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := p.DB.QueryContext(ctx, query, visitorID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			p.logger.Warn("close audit rows", zap.Error(err))
		}
	}()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.VisitorID, &e.Decision, &e.Source, &e.Country, &e.Region, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Entry is one audit trail row.
type Entry struct {
	VisitorID string    `json:"visitor_id"`
	Decision  string    `json:"decision"`
	Source    string    `json:"source"`
	Country   string    `json:"country,omitempty"`
	Region    string    `json:"region,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Close shuts down the connection.
func (p *Postgres) Close() {
	if p != nil && p.DB != nil {
		if err := p.DB.Close(); err != nil {
			p.logger.Error("postgres close", zap.Error(err))
		}
	}
}

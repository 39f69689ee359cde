package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2" // ClickHouse driver
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/consentgate/consentgate/internal/consent"
	"github.com/consentgate/consentgate/internal/observability"
)

// GetConsentStatsInput selects the aggregation window.
type GetConsentStatsInput struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Country   string    `json:"country,omitempty"`
}

// ConsentStat is one aggregate row.
type ConsentStat struct {
	Decision string `json:"decision"`
	Source   string `json:"source"`
	Country  string `json:"country,omitempty"`
	Count    int64  `json:"count"`
}

// GetConsentStatsOutput is the aggregate response.
type GetConsentStatsOutput struct {
	Stats []ConsentStat `json:"stats"`
}

// CheckJurisdictionInput names a location to evaluate.
type CheckJurisdictionInput struct {
	Country string `json:"country"`
	Region  string `json:"region,omitempty"`
}

// CheckJurisdictionOutput reports the policy verdict.
type CheckJurisdictionOutput struct {
	ConsentRequired bool   `json:"consent_required"`
	Reason          string `json:"reason"`
}

// ConsentReportServer holds the reporting dependencies.
type ConsentReportServer struct {
	clickhouse *sql.DB
	policy     *consent.Policy
	logger     *zap.Logger
}

// GetConsentStats aggregates consent events over a date range.
func (s *ConsentReportServer) GetConsentStats(ctx context.Context, req *mcp.CallToolRequest, input GetConsentStatsInput) (*mcp.CallToolResult, GetConsentStatsOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if s.clickhouse == nil {
		return nil, GetConsentStatsOutput{}, fmt.Errorf("clickhouse not available")
	}
	if input.EndDate.Before(input.StartDate) {
		return nil, GetConsentStatsOutput{}, fmt.Errorf("end_date precedes start_date")
	}

	query := `SELECT decision, source, coalesce(country, ''), count() AS c
        FROM consent_events
        WHERE timestamp >= ? AND timestamp < ?`
	args := []any{input.StartDate, input.EndDate}
	if input.Country != "" {
		query += ` AND country = ?`
		args = append(args, input.Country)
	}
	query += ` GROUP BY decision, source, country ORDER BY c DESC`

	rows, err := s.clickhouse.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, GetConsentStatsOutput{}, fmt.Errorf("query consent stats: %w", err)
	}
	defer rows.Close()

	var out GetConsentStatsOutput
	for rows.Next() {
		var st ConsentStat
		if err := rows.Scan(&st.Decision, &st.Source, &st.Country, &st.Count); err != nil {
			return nil, GetConsentStatsOutput{}, fmt.Errorf("scan consent stat: %w", err)
		}
		out.Stats = append(out.Stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, GetConsentStatsOutput{}, err
	}

	s.logger.Info("Consent stats aggregated",
		zap.Time("start", input.StartDate),
		zap.Time("end", input.EndDate),
		zap.Int("rows", len(out.Stats)))
	return nil, out, nil
}

// CheckJurisdiction evaluates the static policy for a location.
func (s *ConsentReportServer) CheckJurisdiction(ctx context.Context, req *mcp.CallToolRequest, input CheckJurisdictionInput) (*mcp.CallToolResult, CheckJurisdictionOutput, error) {
	out := CheckJurisdictionOutput{}
	switch {
	case input.Country == "":
		out.ConsentRequired = true
		out.Reason = "country unknown, failing closed"
	case s.policy.RegulatedCountry(input.Country):
		out.ConsentRequired = true
		out.Reason = "country in regulated set"
	case s.policy.RegulatedRegion(input.Country, input.Region):
		out.ConsentRequired = true
		out.Reason = "region under sub-national consent rule"
	default:
		out.ConsentRequired = false
		out.Reason = "jurisdiction allows auto-grant"
	}
	return nil, out, nil
}

func main() {
	logger, err := observability.InitLogger("consentgate-mcp")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	clickhouseDSN := os.Getenv("CLICKHOUSE_DSN")
	if clickhouseDSN == "" {
		clickhouseDSN = "clickhouse://default:@localhost:9000/default"
	}

	clickhouseDB, err := sql.Open("clickhouse", clickhouseDSN)
	if err != nil {
		logger.Warn("Failed to connect to ClickHouse, stats will be unavailable", zap.Error(err))
		clickhouseDB = nil
	} else {
		clickhouseDB.SetMaxOpenConns(25)
		if err := clickhouseDB.PingContext(context.Background()); err != nil {
			logger.Warn("ClickHouse ping failed, stats will be unavailable", zap.Error(err))
			clickhouseDB.Close()
			clickhouseDB = nil
		} else {
			logger.Info("ClickHouse connected")
			defer clickhouseDB.Close()
		}
	}

	reportServer := &ConsentReportServer{
		clickhouse: clickhouseDB,
		policy:     consent.DefaultPolicy(),
		logger:     logger,
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "consentgate",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_consent_stats",
		Description: "Aggregate recorded consent decisions over a date range",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"start_date": map[string]interface{}{
					"type":        "string",
					"format":      "date-time",
					"description": "Window start (inclusive)",
				},
				"end_date": map[string]interface{}{
					"type":        "string",
					"format":      "date-time",
					"description": "Window end (exclusive)",
				},
				"country": map[string]interface{}{
					"type":        "string",
					"description": "Optional ISO-3166 alpha-2 country filter",
				},
			},
			"required": []string{"start_date", "end_date"},
		},
	}, reportServer.GetConsentStats)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_jurisdiction",
		Description: "Evaluate whether a country/region requires explicit cookie consent",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"country": map[string]interface{}{
					"type":        "string",
					"description": "ISO-3166 alpha-2 country code",
				},
				"region": map[string]interface{}{
					"type":        "string",
					"description": "Optional region or state name",
				},
			},
			"required": []string{"country"},
		},
	}, reportServer.CheckJurisdiction)

	stdioTransport := &mcp.StdioTransport{}

	var logBuffer bytes.Buffer
	loggingTransport := &mcp.LoggingTransport{
		Transport: stdioTransport,
		Writer:    &logBuffer,
	}

	logger.Info("MCP Server running via stdio")

	if err := server.Run(context.Background(), loggingTransport); err != nil {
		logger.Fatal("Server error", zap.Error(err), zap.String("mcp_logs", logBuffer.String()))
	}
}

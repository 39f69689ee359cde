package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/consentgate/consentgate/internal/analytics"
	"github.com/consentgate/consentgate/internal/consent"
	"github.com/consentgate/consentgate/internal/middleware"
	"github.com/consentgate/consentgate/internal/models"
	"github.com/consentgate/consentgate/internal/render"
)

// StatusResponse is the body returned by GET /v1/consent.
type StatusResponse struct {
	Decision       string `json:"decision"`
	Outcome        string `json:"outcome"`
	BannerRequired bool   `json:"banner_required"`
	BannerHTML     string `json:"banner_html,omitempty"`
}

// DecideRequest is the body accepted by POST /v1/consent.
type DecideRequest struct {
	Decision string `json:"decision"`
}

// StatusHandler handles GET /v1/consent: it runs the per-page-load
// orchestration and tells the docs site whether to show the banner.
func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "StatusHandler",
		trace.WithAttributes(
			attribute.String("http.method", "GET"),
			attribute.String("http.route", "/v1/consent"),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "consent_status"
	const method = "GET"

	engine := s.engineFor(w, r)
	result := engine.Initialize(ctx)

	span.SetAttributes(
		attribute.String("consent.outcome", string(result.Outcome)),
		attribute.String("consent.decision", result.Decision.String()),
	)

	resp := StatusResponse{
		Decision:       result.Decision.String(),
		Outcome:        string(result.Outcome),
		BannerRequired: result.Outcome == consent.OutcomeBannerRequired,
	}
	if resp.BannerRequired {
		resp.BannerHTML = render.ComposeBannerHTML(s.bannerConfig())
		s.Metrics.IncrementBannerRenders()
	}

	if result.Outcome == consent.OutcomeAutoGranted {
		s.recordConsentEvent(ctx, r, engine, models.DecisionGranted, models.SourceAuto)
	}

	logger.Debug("consent status",
		zap.String("outcome", string(result.Outcome)),
		zap.String("decision", result.Decision.String()))

	s.writeJSON(w, http.StatusOK, resp)
	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}

// DecideHandler handles POST /v1/consent: the visitor clicked accept or
// decline on the banner.
func (s *Server) DecideHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "DecideHandler",
		trace.WithAttributes(
			attribute.String("http.method", "POST"),
			attribute.String("http.route", "/v1/consent"),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "consent_decide"
	const method = "POST"

	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid body")
		logger.Warn("decide body malformed", zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	decision := models.ParseDecision(req.Decision)
	if !decision.Known() {
		logger.Warn("decide rejected unknown decision", zap.String("decision", req.Decision))
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, `decision must be "granted" or "declined"`, http.StatusBadRequest)
		return
	}

	engine := s.engineFor(w, r)
	engine.PersistDecision(ctx, decision, models.SourceUser)

	if decision == models.DecisionGranted {
		s.recordConsentEvent(ctx, r, engine, decision, models.SourceUser)
	}

	span.SetAttributes(attribute.String("consent.decision", decision.String()))
	logger.Info("consent decision recorded",
		zap.String("decision", decision.String()),
		zap.String("source", string(models.SourceUser)))

	s.writeJSON(w, http.StatusOK, StatusResponse{
		Decision: decision.String(),
		Outcome:  string(consent.OutcomeStoredHonored),
	})
	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}

// BannerHandler handles GET /v1/consent/banner: the themed banner fragment
// on its own, for sites that fetch markup lazily.
func (s *Server) BannerHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "consent_banner"
	const method = "GET"

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(render.ComposeBannerHTML(s.bannerConfig())))

	s.Metrics.IncrementBannerRenders()
	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}

// recordConsentEvent forwards a granted decision to analytics. Declined
// decisions never reach the sink: the subsystem only runs with consent.
func (s *Server) recordConsentEvent(ctx context.Context, r *http.Request, engine *consent.Engine, decision models.Decision, source models.DecisionSource) {
	if s.Analytics == nil || !s.Analytics.Started() {
		return
	}
	loc, _ := engine.CachedLocation()
	ev := analytics.NewConsentEvent(s.visitorIDFromRequest(r), decision, source, loc, r.UserAgent())
	if err := s.Analytics.RecordConsentEvent(ctx, ev); err != nil && err != analytics.ErrUnavailable {
		s.Logger.Warn("consent event record failed", zap.Error(err))
	}
}

// visitorIDFromRequest reads the visitor cookie without minting a new ID.
func (s *Server) visitorIDFromRequest(r *http.Request) string {
	if c, err := r.Cookie(VisitorCookie); err == nil {
		return c.Value
	}
	return ""
}

// writeJSON writes a JSON response body.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("write response", zap.Error(err))
	}
}

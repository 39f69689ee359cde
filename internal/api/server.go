package api

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/consentgate/consentgate/internal/analytics"
	"github.com/consentgate/consentgate/internal/audit"
	"github.com/consentgate/consentgate/internal/config"
	"github.com/consentgate/consentgate/internal/consent"
	"github.com/consentgate/consentgate/internal/geo"
	"github.com/consentgate/consentgate/internal/observability"
	"github.com/consentgate/consentgate/internal/render"
	"github.com/consentgate/consentgate/internal/store"
)

var tracer = otel.Tracer("consentgate")

// VisitorCookie names the cookie carrying the anonymous visitor ID used to
// key the server-side consent store.
const VisitorCookie = "vid"

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger    *zap.Logger
	Redis     *store.RedisStore
	Resolver  geo.Resolver
	Policy    *consent.Policy
	Analytics analytics.Service
	Audit     *audit.Postgres
	Metrics   observability.MetricsRegistry
	Config    config.Config
}

// NewServer constructs a Server. Redis and Audit may be nil; the cookie
// backend alone then carries persistence (Audit nil simply disables the
// trail).
func NewServer(logger *zap.Logger, redis *store.RedisStore, resolver geo.Resolver, policy *consent.Policy, analyticsSvc analytics.Service, auditStore *audit.Postgres, metrics observability.MetricsRegistry, cfg config.Config) *Server {
	if policy == nil {
		policy = consent.DefaultPolicy()
	}
	return &Server{
		Logger:    logger,
		Redis:     redis,
		Resolver:  resolver,
		Policy:    policy,
		Analytics: analyticsSvc,
		Audit:     auditStore,
		Metrics:   metrics,
		Config:    cfg,
	}
}

// engineFor builds a per-page-load decision engine bound to this
// request/response pair. The cookie backend needs the response writer, so
// engines cannot outlive their request.
func (s *Server) engineFor(w http.ResponseWriter, r *http.Request) *consent.Engine {
	visitorID := s.visitorID(w, r)

	cookieStore := store.NewCookieStore(store.CookieConfig{
		Name:   s.Config.CookieName,
		Domain: s.Config.CookieDomain,
		MaxAge: s.Config.CookieMaxAge,
	}, w, r)

	var backends []store.Store
	if s.Redis != nil {
		backends = append(backends, s.Redis)
	}
	backends = append(backends, cookieStore)

	var auditor consent.Auditor
	if s.Audit != nil {
		auditor = s.Audit
	}

	return consent.NewEngine(consent.Params{
		VisitorID: visitorID,
		IP:        clientIP(r),
		Store:     store.NewMulti(s.Logger, s.Metrics, backends...),
		Resolver:  s.Resolver,
		Policy:    s.Policy,
		Bootstrap: s.Analytics,
		Auditor:   auditor,
		Logger:    s.Logger,
		Metrics:   s.Metrics,
	})
}

// visitorID returns the visitor's anonymous ID, minting and setting one
// when the request has none. The ID carries no meaning beyond keying the
// server-side store.
func (s *Server) visitorID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(VisitorCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     VisitorCookie,
		Value:    id,
		Path:     "/",
		Domain:   s.Config.CookieDomain,
		MaxAge:   int(s.Config.CookieMaxAge.Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// clientIP extracts the visitor address, preferring the first hop of
// X-Forwarded-For when the service sits behind a proxy.
func clientIP(r *http.Request) string {
	ipStr := r.Header.Get("X-Forwarded-For")
	if ipStr != "" {
		if idx := strings.Index(ipStr, ","); idx >= 0 {
			ipStr = ipStr[:idx]
		}
		return strings.TrimSpace(ipStr)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// bannerConfig assembles the presentation config from service settings.
func (s *Server) bannerConfig() render.BannerConfig {
	return render.BannerConfig{
		PrivacyPolicyURL: s.Config.PrivacyPolicyURL,
		Theme:            s.Config.BannerTheme,
	}
}

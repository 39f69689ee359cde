package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/consentgate/consentgate/internal/analytics"
	"github.com/consentgate/consentgate/internal/api"
	"github.com/consentgate/consentgate/internal/audit"
	"github.com/consentgate/consentgate/internal/config"
	"github.com/consentgate/consentgate/internal/consent"
	"github.com/consentgate/consentgate/internal/geo"
	"github.com/consentgate/consentgate/internal/middleware"
	"github.com/consentgate/consentgate/internal/observability"
	"github.com/consentgate/consentgate/internal/store"
)

func main() {
	cfg := config.Load()

	logger, err := observability.InitLogger(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.TempoEndpoint, cfg.TracingSampleRate)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdown()
	}

	metricsRegistry := observability.NewPrometheusRegistry()

	redisStore, err := store.InitRedis(cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("failed to connect redis: %w", err)
	}
	defer redisStore.Close()

	analyticsSvc, err := analytics.InitClickHouse(cfg.ClickHouseDSN, metricsRegistry)
	if err != nil {
		return fmt.Errorf("failed to connect clickhouse: %w", err)
	}
	defer analyticsSvc.Close()

	var auditStore *audit.Postgres
	if cfg.PostgresDSN != "" {
		auditStore, err = audit.InitPostgres(cfg.PostgresDSN, logger, metricsRegistry)
		if err != nil {
			return fmt.Errorf("failed to connect postgres: %w", err)
		}
		defer auditStore.Close()
	}

	resolver, closeResolver, err := buildResolver(cfg, logger, metricsRegistry)
	if err != nil {
		return err
	}
	defer closeResolver()

	srvDeps := api.NewServer(logger, redisStore, resolver, consent.DefaultPolicy(), analyticsSvc, auditStore, metricsRegistry, cfg)

	r := mux.NewRouter()
	r.Use(middleware.WithTraceLogger(logger))
	r.HandleFunc("/v1/consent", srvDeps.StatusHandler).Methods("GET")
	r.HandleFunc("/v1/consent", srvDeps.DecideHandler).Methods("POST")
	r.HandleFunc("/v1/consent/banner", srvDeps.BannerHandler).Methods("GET")
	r.HandleFunc("/health", srvDeps.HealthHandler).Methods("GET")

	// operator surface
	r.HandleFunc("/api/audit/{visitor_id}", srvDeps.AuditHistoryHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler())

	addr := ":" + cfg.Port

	srv := &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(r, cfg.ServiceName),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("Consent gateway running",
		zap.String("addr", addr),
		zap.String("geo_provider", cfg.GeoProvider))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}

// buildResolver selects the configured geolocation provider.
func buildResolver(cfg config.Config, logger *zap.Logger, metrics *observability.PrometheusRegistry) (geo.Resolver, func(), error) {
	switch cfg.GeoProvider {
	case config.GeoProviderMaxMind:
		p, err := geo.OpenMaxMind(cfg.GeoIPDB)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load geoip db: %w", err)
		}
		return p, func() { _ = p.Close() }, nil
	case config.GeoProviderHTTP:
		p := geo.NewHTTPProvider(cfg.GeoEndpoint, cfg.GeoTimeout, cfg.GeoCacheTTL, logger, metrics)
		return p, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown geo provider %q", cfg.GeoProvider)
	}
}

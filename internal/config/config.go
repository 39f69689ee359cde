package config

import (
	"os"
	"strconv"
	"time"
)

// Geolocation provider selection values.
const (
	GeoProviderHTTP    = "http"
	GeoProviderMaxMind = "maxmind"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ServiceName  string

	// Consent store configuration
	RedisAddr    string
	CookieName   string
	CookieDomain string
	CookieMaxAge time.Duration

	// Geolocation configuration
	GeoProvider string
	GeoEndpoint string
	GeoTimeout  time.Duration
	GeoCacheTTL time.Duration
	GeoIPDB     string

	// Analytics and audit sinks
	ClickHouseDSN string
	PostgresDSN   string

	// Presentation
	PrivacyPolicyURL string
	BannerTheme      string

	// Tracing configuration
	TracingEnabled    bool
	TempoEndpoint     string
	TracingSampleRate float64
}

// Load parses environment variables and returns a Config populated with
// defaults when variables are absent.
func Load() Config {
	cfg := Config{}

	cfg.Port = getenv("PORT", "8791")
	cfg.ReadTimeout = envDuration("READ_TIMEOUT", 5*time.Second)
	cfg.WriteTimeout = envDuration("WRITE_TIMEOUT", 10*time.Second)
	cfg.ServiceName = getenv("SERVICE_NAME", "consentgate")

	cfg.RedisAddr = getenv("REDIS_ADDR", "localhost:6379")
	cfg.CookieName = getenv("COOKIE_NAME", "cookie-consent")
	cfg.CookieDomain = getenv("COOKIE_DOMAIN", "")
	// 365 days keeps a banner choice for a year before it is asked again
	cfg.CookieMaxAge = envDuration("COOKIE_MAX_AGE", 365*24*time.Hour)

	cfg.GeoProvider = getenv("GEO_PROVIDER", GeoProviderHTTP)
	cfg.GeoEndpoint = getenv("GEO_ENDPOINT", "https://get.geojs.io/v1/ip/geo.json")
	cfg.GeoTimeout = envDuration("GEO_TIMEOUT", 3*time.Second)
	cfg.GeoCacheTTL = envDuration("GEO_CACHE_TTL", 15*time.Minute)
	cfg.GeoIPDB = getenv("GEOIP_DB", "internal/geo/testdata/GeoLite2-Country.mmdb")

	cfg.ClickHouseDSN = getenv("CLICKHOUSE_DSN", "clickhouse://default:@localhost:9000/default?async_insert=1&wait_for_async_insert=1")
	cfg.PostgresDSN = getenv("POSTGRES_DSN", "")

	cfg.PrivacyPolicyURL = getenv("PRIVACY_POLICY_URL", "/privacy")
	cfg.BannerTheme = getenv("BANNER_THEME", "light")

	cfg.TracingEnabled = envBool("TRACING_ENABLED", false)
	cfg.TempoEndpoint = getenv("TEMPO_ENDPOINT", "tempo:4317")
	cfg.TracingSampleRate = envFloat("TRACING_SAMPLE_RATE", 1.0)

	return cfg
}

// getenv returns the value of the environment variable if set, otherwise def.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envDuration parses an environment variable into a time.Duration.
// The value can be a duration string (e.g. "5s") or a number of seconds.
// If the variable is unset or invalid, def is returned.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// envBool parses a boolean environment variable. Accepted values are those
// supported by strconv.ParseBool. When unset or invalid, def is returned.
func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

// envFloat parses a float64 environment variable. When unset or invalid, def is returned.
func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return def
}

package store

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/consentgate/consentgate/internal/models"
)

// CookieConfig describes how the consent cookie is issued.
type CookieConfig struct {
	// Name of the cookie; defaults to Key.
	Name string
	// Domain scopes the cookie to a parent domain so subdomain docs sites
	// share one decision. Empty means host-only.
	Domain string
	// MaxAge bounds the cookie lifetime; the decision is asked again after
	// it lapses.
	MaxAge time.Duration
}

// CookieStore is the secondary consent backend. It is bound to a single
// request/response pair, so one instance is built per request by the HTTP
// layer.
type CookieStore struct {
	cfg CookieConfig
	r   *http.Request
	w   http.ResponseWriter
}

// NewCookieStore binds a cookie backend to one request/response pair.
func NewCookieStore(cfg CookieConfig, w http.ResponseWriter, r *http.Request) *CookieStore {
	if cfg.Name == "" {
		cfg.Name = Key
	}
	return &CookieStore{cfg: cfg, r: r, w: w}
}

// Name implements Store.
func (c *CookieStore) Name() string { return "cookie" }

// Get implements Store. The visitor ID is unused: the browser already
// scopes cookies to the visitor.
func (c *CookieStore) Get(_ context.Context, _ string) (models.Decision, error) {
	cookie, err := c.r.Cookie(c.cfg.Name)
	if errors.Is(err, http.ErrNoCookie) {
		return models.DecisionUnknown, nil
	}
	if err != nil {
		return models.DecisionUnknown, err
	}
	return models.ParseDecision(cookie.Value), nil
}

// Set implements Store.
func (c *CookieStore) Set(_ context.Context, _ string, decision models.Decision) error {
	http.SetCookie(c.w, &http.Cookie{
		Name:     c.cfg.Name,
		Value:    string(decision),
		Path:     "/",
		Domain:   c.cfg.Domain,
		MaxAge:   int(c.cfg.MaxAge.Seconds()),
		Expires:  time.Now().Add(c.cfg.MaxAge),
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

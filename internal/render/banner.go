// Package render composes the consent banner markup served to the docs
// site. It is pure presentation: no policy logic lives here, and the
// client script is expected to remove the banner once either button's
// callback has fired.
package render

import (
	"fmt"
	"html"
	"strings"
)

// BannerConfig controls the composed banner fragment.
type BannerConfig struct {
	// Message shown to the visitor; a default is used when empty.
	Message string
	// PrivacyPolicyURL is linked from the banner when set.
	PrivacyPolicyURL string
	// Theme is appended as a CSS class suffix (e.g. "light", "dark").
	Theme string
	// AcceptLabel and DeclineLabel override the button captions.
	AcceptLabel  string
	DeclineLabel string
}

const defaultMessage = "We use cookies to understand how our documentation is used."

// ComposeBannerHTML converts a banner config into an HTML fragment for
// client rendering. Server-side composition keeps the client script down
// to wiring the two buttons to the consent endpoint.
func ComposeBannerHTML(cfg BannerConfig) string {
	message := cfg.Message
	if message == "" {
		message = defaultMessage
	}
	accept := cfg.AcceptLabel
	if accept == "" {
		accept = "Accept"
	}
	decline := cfg.DeclineLabel
	if decline == "" {
		decline = "Decline"
	}

	theme := "light"
	if cfg.Theme != "" {
		theme = cfg.Theme
	}

	var parts []string
	parts = append(parts, fmt.Sprintf(`<div class="consent-banner consent-banner--%s" role="dialog" aria-live="polite">`, html.EscapeString(theme)))

	text := html.EscapeString(message)
	if cfg.PrivacyPolicyURL != "" {
		text = fmt.Sprintf(`%s <a href="%s" rel="noopener">Learn more</a>`, text, html.EscapeString(cfg.PrivacyPolicyURL))
	}
	parts = append(parts, fmt.Sprintf(`<p class="consent-banner__message">%s</p>`, text))

	parts = append(parts, `<div class="consent-banner__actions">`)
	parts = append(parts, fmt.Sprintf(`<button type="button" class="consent-banner__accept" data-consent="granted">%s</button>`, html.EscapeString(accept)))
	parts = append(parts, fmt.Sprintf(`<button type="button" class="consent-banner__decline" data-consent="declined">%s</button>`, html.EscapeString(decline)))
	parts = append(parts, `</div>`)

	parts = append(parts, `</div>`)
	return strings.Join(parts, "")
}

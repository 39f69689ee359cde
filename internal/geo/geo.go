package geo

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable is returned when a location cannot be determined, whether
// because the provider failed, timed out, or returned an unusable body.
// Callers are expected to fail closed on it.
var ErrUnavailable = errors.New("geolocation unavailable")

// Record is a resolved visitor location. Country is an uppercased ISO-3166
// alpha-2 code; Region and City are free-form provider strings and may be
// empty.
type Record struct {
	Country string `json:"country"`
	Region  string `json:"region,omitempty"`
	City    string `json:"city,omitempty"`
}

// Resolver resolves a visitor's IP address to a location record.
type Resolver interface {
	Resolve(ctx context.Context, ip string) (Record, error)
}

// payload mirrors the wire format shared by the common public geolocation
// endpoints: every field is optional.
type payload struct {
	CountryCode string `json:"country_code"`
	Country     string `json:"country"`
	Region      string `json:"region"`
	City        string `json:"city"`
}

// normalize converts a raw provider payload into a Record, preferring the
// dedicated country-code field over the country name.
func (p payload) normalize() Record {
	country := p.CountryCode
	if country == "" {
		country = p.Country
	}
	return Record{
		Country: strings.ToUpper(strings.TrimSpace(country)),
		Region:  strings.TrimSpace(p.Region),
		City:    strings.TrimSpace(p.City),
	}
}

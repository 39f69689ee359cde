package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/oschwald/geoip2-golang"
)

// MaxMindProvider resolves locations from a local MaxMind DB, with a JSON
// CIDR-list fallback for environments without an mmdb file. It exists for
// deployments that cannot reach a remote geolocation endpoint at all.
type MaxMindProvider struct {
	db       *geoip2.Reader
	fallback []cidrEntry
}

type cidrEntry struct {
	net     *net.IPNet
	country string
	region  string
}

// OpenMaxMind opens the database located at path. If the file is not a
// valid mmdb it is retried as a JSON array of {net, country, region}
// objects.
func OpenMaxMind(path string) (*MaxMindProvider, error) {
	p := &MaxMindProvider{}
	db, err := geoip2.Open(path)
	if err == nil {
		p.db = db
		return p, nil
	}

	data, jerr := os.ReadFile(path)
	if jerr != nil {
		return nil, err
	}
	var entries []struct {
		Net     string `json:"net"`
		Country string `json:"country"`
		Region  string `json:"region"`
	}
	if jerr = json.Unmarshal(data, &entries); jerr != nil {
		return nil, err
	}
	for _, e := range entries {
		if _, n, perr := net.ParseCIDR(e.Net); perr == nil {
			p.fallback = append(p.fallback, cidrEntry{net: n, country: e.Country, region: e.Region})
		}
	}
	return p, nil
}

// Resolve looks up ip in the local database. An address missing from the
// database yields an empty record, not an error; the policy layer treats
// an empty country as unknown and fails closed on its own.
func (p *MaxMindProvider) Resolve(_ context.Context, ip string) (Record, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Record{}, fmt.Errorf("%w: invalid ip %q", ErrUnavailable, ip)
	}

	if p.db != nil {
		rec := Record{}
		if c, err := p.db.Country(parsed); err == nil {
			rec.Country = c.Country.IsoCode
		}
		if city, err := p.db.City(parsed); err == nil {
			if len(city.Subdivisions) > 0 {
				rec.Region = city.Subdivisions[0].IsoCode
			}
			rec.City = city.City.Names["en"]
		}
		return rec, nil
	}

	for _, e := range p.fallback {
		if e.net.Contains(parsed) {
			return Record{Country: e.country, Region: e.region}, nil
		}
	}
	return Record{}, nil
}

// Close releases resources associated with the database.
func (p *MaxMindProvider) Close() error {
	if p != nil && p.db != nil {
		return p.db.Close()
	}
	return nil
}

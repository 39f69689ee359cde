package consent

import "strings"

// Policy is the static jurisdiction rule set mapping a resolved location to
// "explicit consent required" vs "auto-grant". It is immutable after
// construction and safe for concurrent use.
type Policy struct {
	regulated map[string]bool
	regions   map[string]regionRule
}

// regionRule marks sub-national jurisdictions that require explicit consent
// even though the country as a whole does not.
type regionRule struct {
	// fragments match case-insensitively anywhere in the region string,
	// so "California", "CALIFORNIA, USA" and "southern california" all hit.
	fragments []string
	// codes match the region string exactly, ignoring case.
	codes []string
}

// gdprCountries are the EU member states plus the EEA members, the UK
// (UK GDPR) and Switzerland (revFADP).
var gdprCountries = []string{
	"AT", "BE", "BG", "HR", "CY", "CZ", "DK", "EE", "FI", "FR",
	"DE", "GR", "HU", "IE", "IT", "LV", "LT", "LU", "MT", "NL",
	"PL", "PT", "RO", "SK", "SI", "ES", "SE",
	"IS", "LI", "NO",
	"GB", "CH",
}

// DefaultPolicy returns the built-in rule set: GDPR-scope countries plus
// the CCPA rule for California.
func DefaultPolicy() *Policy {
	return NewPolicy(gdprCountries, map[string][]string{"US": {"california"}})
}

// NewPolicy builds a policy from a regulated-country list and per-country
// region name fragments. Fragments are matched case-insensitively anywhere
// in the resolved region string.
func NewPolicy(countries []string, regionFragments map[string][]string) *Policy {
	p := &Policy{
		regulated: make(map[string]bool, len(countries)),
		regions:   make(map[string]regionRule, len(regionFragments)),
	}
	for _, c := range countries {
		p.regulated[strings.ToUpper(c)] = true
	}
	for country, fragments := range regionFragments {
		rule := regionRule{}
		for _, f := range fragments {
			rule.fragments = append(rule.fragments, strings.ToLower(f))
		}
		p.regions[strings.ToUpper(country)] = rule
	}
	// The CCPA rule also matches the bare subdivision code.
	if rule, ok := p.regions["US"]; ok {
		rule.codes = append(rule.codes, "CA")
		p.regions["US"] = rule
	}
	return p
}

// RegulatedCountry reports whether the country as a whole requires explicit
// consent.
func (p *Policy) RegulatedCountry(country string) bool {
	return p.regulated[strings.ToUpper(country)]
}

// RegulatedRegion reports whether the (country, region) pair falls under a
// sub-national consent rule. An empty region never matches.
func (p *Policy) RegulatedRegion(country, region string) bool {
	if region == "" {
		return false
	}
	rule, ok := p.regions[strings.ToUpper(country)]
	if !ok {
		return false
	}
	lower := strings.ToLower(region)
	for _, f := range rule.fragments {
		if strings.Contains(lower, f) {
			return true
		}
	}
	upper := strings.ToUpper(region)
	for _, c := range rule.codes {
		if upper == c {
			return true
		}
	}
	return false
}

package consent

import "testing"

func TestPolicy_RegulatedCountries(t *testing.T) {
	p := DefaultPolicy()

	for _, c := range gdprCountries {
		if !p.RegulatedCountry(c) {
			t.Errorf("expected %s to be regulated", c)
		}
	}

	// lowercase input normalizes
	if !p.RegulatedCountry("de") {
		t.Error("expected lowercase country code to match")
	}

	for _, c := range []string{"US", "JP", "BR", "AU", "CA", "IN", "ZA", ""} {
		if p.RegulatedCountry(c) {
			t.Errorf("expected %s not to be regulated", c)
		}
	}
}

func TestPolicy_RegulatedRegion(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name    string
		country string
		region  string
		want    bool
	}{
		{"california plain", "US", "California", true},
		{"california lowercase", "US", "california", true},
		{"california shouting", "US", "CALIFORNIA", true},
		{"california with surrounding text", "US", "Southern California, USA", true},
		{"subdivision code", "US", "CA", true},
		{"subdivision code lowercase", "US", "ca", true},
		{"texas", "US", "Texas", false},
		{"no region", "US", "", false},
		{"california outside the US", "MX", "Baja California", false},
		{"non-us country ignores regions", "JP", "California", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.RegulatedRegion(tt.country, tt.region); got != tt.want {
				t.Errorf("RegulatedRegion(%q, %q) = %v, want %v", tt.country, tt.region, got, tt.want)
			}
		})
	}
}

func TestNewPolicy_CustomRules(t *testing.T) {
	p := NewPolicy([]string{"xx"}, map[string][]string{"YY": {"somewhere"}})

	if !p.RegulatedCountry("XX") {
		t.Error("expected custom country to be regulated")
	}
	if !p.RegulatedRegion("yy", "Somewhere Else") {
		t.Error("expected custom region fragment to match")
	}
	if p.RegulatedRegion("YY", "CA") {
		t.Error("CA code must only apply to the built-in US rule")
	}
}

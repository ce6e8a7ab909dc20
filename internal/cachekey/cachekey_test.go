package cachekey

import (
	"testing"

	"github.com/kjstillabower/weather-resolver/internal/models"
)

func loc(lat, lon float64, postal string) models.Location {
	return models.Location{Latitude: models.Float64(lat), Longitude: models.Float64(lon), PostalCode: postal}
}

// TestDerive verifies postal-code keys win over coordinate keys and that
// coordinates are rendered exactly as stored.
func TestDerive(t *testing.T) {
	tests := []struct {
		name string
		in   models.Location
		want string
	}{
		{"postal code", loc(37.331820, -122.031180, "95014"), "weather/zipcode/95014"},
		{"postal code trimmed", loc(37.33, -122.03, " 95014 "), "weather/zipcode/95014"},
		{"no postal code", loc(37.33182, -122.03118, ""), "weather/coordinates/37.33182_-122.03118"},
		{"whitespace postal code", loc(40.7128, -74.006, "   "), "weather/coordinates/40.7128_-74.006"},
		{"no rounding", loc(40.712812345, -74.00601234, ""), "weather/coordinates/40.712812345_-74.00601234"},
		{"integral coordinates", loc(45, -93, ""), "weather/coordinates/45_-93"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Derive(tt.in); got != tt.want {
				t.Errorf("Derive() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestDerive_SharedPostalCode verifies that nearby addresses geocoding to different
// coordinates but the same postal code share one cache key.
func TestDerive_SharedPostalCode(t *testing.T) {
	a := loc(37.33182, -122.03118, "95014")
	b := loc(37.334606, -122.009102, "95014")
	if Derive(a) != Derive(b) {
		t.Errorf("Derive(a) = %q, Derive(b) = %q, want equal", Derive(a), Derive(b))
	}
}

// TestDerive_DistinctCoordinates verifies coordinate keys differ for distinct pairs,
// including pairs whose naive concatenation would collide.
func TestDerive_DistinctCoordinates(t *testing.T) {
	pairs := [][2]float64{
		{1.1, 2.2}, {1.12, 2.2}, {1.1, 2.22}, {11, 2.2}, {-1.1, 2.2}, {1.1, -2.2}, {2.2, 1.1},
	}
	seen := make(map[string][2]float64)
	for _, p := range pairs {
		k := Derive(loc(p[0], p[1], ""))
		if prev, ok := seen[k]; ok {
			t.Fatalf("Derive collision: %v and %v both map to %q", prev, p, k)
		}
		seen[k] = p
	}
}

// TestDerive_Deterministic verifies repeated calls return the same key.
func TestDerive_Deterministic(t *testing.T) {
	l := loc(47.6062, -122.3321, "")
	first := Derive(l)
	for i := 0; i < 10; i++ {
		if got := Derive(l); got != first {
			t.Fatalf("Derive() call %d = %q, want %q", i, got, first)
		}
	}
}

// TestQueryParam verifies postal codes are preferred and coordinates are joined with a comma.
func TestQueryParam(t *testing.T) {
	if got := QueryParam(loc(37.33, -122.03, "95014")); got != "95014" {
		t.Errorf("QueryParam() = %q, want %q", got, "95014")
	}
	if got := QueryParam(loc(37.33182, -122.03118, "")); got != "37.33182,-122.03118" {
		t.Errorf("QueryParam() = %q, want %q", got, "37.33182,-122.03118")
	}
}

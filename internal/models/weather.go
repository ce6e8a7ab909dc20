package models

import (
	"strings"
	"time"
)

// Location is a geocoded address. Coordinates are nil until the address has been resolved.
type Location struct {
	ID         string    `json:"id"`
	Address    string    `json:"address"`
	Latitude   *float64  `json:"latitude,omitempty"`
	Longitude  *float64  `json:"longitude,omitempty"`
	PostalCode string    `json:"postalCode,omitempty"`
	City       string    `json:"city,omitempty"`
	State      string    `json:"state,omitempty"`
	Country    string    `json:"country,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// HasCoordinates reports whether both latitude and longitude are present.
func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// DisplayName prefers "City, State" over the raw address.
func (l Location) DisplayName() string {
	var parts []string
	for _, p := range []string{l.City, l.State} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return l.Address
	}
	return strings.Join(parts, ", ")
}

// Observation holds the fields read from one upstream response.
// A nil field means the provider omitted that value.
type Observation struct {
	CurrentTemp *float64 `json:"currentTemp"`
	HighTemp    *float64 `json:"highTemp"`
	LowTemp     *float64 `json:"lowTemp"`
	Conditions  *string  `json:"conditions"`
}

// WeatherRecord is the latest observation stored for a single Location.
type WeatherRecord struct {
	ID         string `json:"id"`
	LocationID string `json:"locationId"`
	Observation
	GeneratedAt time.Time `json:"generatedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CacheEntry is the secondary-cache value stored under a derived key.
type CacheEntry struct {
	Observation
	GeneratedAt time.Time `json:"generatedAt"`
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 {
	return &v
}

// String returns a pointer to s.
func String(s string) *string {
	return &s
}

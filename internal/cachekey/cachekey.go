// Package cachekey maps a Location to the key used for the secondary cache
// and to the query sent upstream.
package cachekey

import (
	"strconv"
	"strings"

	"github.com/kjstillabower/weather-resolver/internal/models"
)

const (
	zipcodePrefix     = "weather/zipcode/"
	coordinatesPrefix = "weather/coordinates/"
)

// Derive returns the secondary-cache key for loc. Locations sharing a postal code
// share a key; otherwise the key is built from the exact coordinates.
// Callers must only pass resolved locations.
func Derive(loc models.Location) string {
	if pc := strings.TrimSpace(loc.PostalCode); pc != "" {
		return zipcodePrefix + pc
	}
	return coordinatesPrefix + formatCoord(loc.Latitude) + "_" + formatCoord(loc.Longitude)
}

// QueryParam returns the upstream location query: the postal code when present,
// else "<lat>,<lon>".
func QueryParam(loc models.Location) string {
	if pc := strings.TrimSpace(loc.PostalCode); pc != "" {
		return pc
	}
	return formatCoord(loc.Latitude) + "," + formatCoord(loc.Longitude)
}

// formatCoord renders the stored value without rounding.
func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

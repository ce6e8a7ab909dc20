// Package store persists Locations and the authoritative WeatherRecord for each one.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kjstillabower/weather-resolver/internal/models"
)

var (
	// ErrNotFound is returned when a Location does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateAddress is returned when a Location with the same AddressKey
	// already exists.
	ErrDuplicateAddress = errors.New("location address already exists")
)

// AddressKey is the uniqueness key for a Location address. Every backend compares
// addresses through it, so case folding is full Unicode lowercasing everywhere.
func AddressKey(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// RecordStore holds at most one WeatherRecord per Location ID.
type RecordStore interface {
	// GetRecordFor returns the record for locationID; ok is false when none exists.
	GetRecordFor(ctx context.Context, locationID string) (rec models.WeatherRecord, ok bool, err error)
	// UpsertRecordFor overwrites the existing record in place or creates one.
	UpsertRecordFor(ctx context.Context, locationID string, obs models.Observation, generatedAt time.Time) (models.WeatherRecord, error)
}

// LocationStore manages Locations. Deleting a Location removes its record.
type LocationStore interface {
	CreateLocation(ctx context.Context, loc models.Location) (models.Location, error)
	GetLocation(ctx context.Context, id string) (models.Location, error)
	// FindLocationByAddress matches on AddressKey.
	FindLocationByAddress(ctx context.Context, address string) (models.Location, error)
	// RecentLocations returns up to limit Locations, newest first.
	RecentLocations(ctx context.Context, limit int) ([]models.Location, error)
	DeleteLocation(ctx context.Context, id string) error
}

// Store is the full persistence surface used by the service.
type Store interface {
	RecordStore
	LocationStore
	Ping(ctx context.Context) error
	Close() error
}

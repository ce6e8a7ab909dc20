package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-resolver/internal/geocode"
	"github.com/kjstillabower/weather-resolver/internal/models"
	"github.com/kjstillabower/weather-resolver/internal/store"
)

// RecentLimit is the number of Locations returned by List.
const RecentLimit = 10

// LocationWeather pairs a Location with the outcome of resolving its weather.
// Exactly one of Resolution and Err is set.
type LocationWeather struct {
	Location   models.Location
	Resolution *Resolution
	Err        error
}

// CreateResult is returned by Create. Created is false when the address already existed.
type CreateResult struct {
	LocationWeather
	Created bool
}

// LocationService manages tracked Locations and resolves their weather.
type LocationService struct {
	resolver  *Resolver
	locations store.LocationStore
	geocoder  geocode.Geocoder
	logger    *zap.Logger
}

// NewLocationService wires the Location lifecycle around a Resolver.
func NewLocationService(resolver *Resolver, locations store.LocationStore, geocoder geocode.Geocoder, logger *zap.Logger) *LocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocationService{
		resolver:  resolver,
		locations: locations,
		geocoder:  geocoder,
		logger:    logger,
	}
}

// Create registers a normalized address. An existing Location with the same address
// (case-insensitive) is returned instead of a duplicate. An address the geocoder cannot
// match is stored without coordinates; its weather then fails with ErrLocationNotResolved.
// Geocoder outages are returned as errors and nothing is stored.
func (s *LocationService) Create(ctx context.Context, address string) (CreateResult, error) {
	if existing, err := s.locations.FindLocationByAddress(ctx, address); err == nil {
		return CreateResult{LocationWeather: s.resolve(ctx, existing)}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return CreateResult{}, fmt.Errorf("find location: %w", err)
	}

	loc, err := s.geocoder.Geocode(ctx, address)
	switch {
	case errors.Is(err, geocode.ErrNotFound):
		s.logger.Info("address could not be geocoded", zap.String("address", address))
		loc = models.Location{}
	case err != nil:
		return CreateResult{}, fmt.Errorf("geocode address: %w", err)
	}
	loc.Address = address

	created, err := s.locations.CreateLocation(ctx, loc)
	if errors.Is(err, store.ErrDuplicateAddress) {
		// Lost a race with a concurrent create of the same address.
		existing, findErr := s.locations.FindLocationByAddress(ctx, address)
		if findErr != nil {
			return CreateResult{}, fmt.Errorf("find location: %w", findErr)
		}
		return CreateResult{LocationWeather: s.resolve(ctx, existing)}, nil
	}
	if err != nil {
		return CreateResult{}, fmt.Errorf("create location: %w", err)
	}

	s.logger.Info("location created", zap.String("locationId", created.ID), zap.Bool("geocoded", created.HasCoordinates()))
	return CreateResult{LocationWeather: s.resolve(ctx, created), Created: true}, nil
}

// List returns the most recent Locations, each with its weather when it resolves.
func (s *LocationService) List(ctx context.Context) ([]LocationWeather, error) {
	locs, err := s.locations.RecentLocations(ctx, RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	out := make([]LocationWeather, 0, len(locs))
	for _, loc := range locs {
		out = append(out, s.resolve(ctx, loc))
	}
	return out, nil
}

// Get returns the Location for id with the outcome of resolving its weather.
// store.ErrNotFound is returned for unknown IDs.
func (s *LocationService) Get(ctx context.Context, id string) (LocationWeather, error) {
	loc, err := s.locations.GetLocation(ctx, id)
	if err != nil {
		return LocationWeather{}, err
	}
	return s.resolve(ctx, loc), nil
}

// Delete removes the Location and, through the store, its weather record.
func (s *LocationService) Delete(ctx context.Context, id string) error {
	if err := s.locations.DeleteLocation(ctx, id); err != nil {
		return err
	}
	s.logger.Info("location deleted", zap.String("locationId", id))
	return nil
}

// RefreshLocation resolves weather for a stored Location. Used by the cache warmer.
func (s *LocationService) RefreshLocation(ctx context.Context, id string) error {
	loc, err := s.locations.GetLocation(ctx, id)
	if err != nil {
		return fmt.Errorf("location %s: %w", id, err)
	}
	if _, err := s.resolver.Resolve(ctx, loc); err != nil {
		return fmt.Errorf("location %s: %w", id, err)
	}
	return nil
}

func (s *LocationService) resolve(ctx context.Context, loc models.Location) LocationWeather {
	res, err := s.resolver.Resolve(ctx, loc)
	if err != nil {
		return LocationWeather{Location: loc, Err: err}
	}
	return LocationWeather{Location: loc, Resolution: &res}
}

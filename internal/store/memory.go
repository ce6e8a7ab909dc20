package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kjstillabower/weather-resolver/internal/models"
)

// MemoryStore is a goroutine-safe in-process Store. Writes are last-write-wins.
type MemoryStore struct {
	mu        sync.RWMutex
	locations map[string]models.Location
	byAddress map[string]string // AddressKey -> Location ID
	records   map[string]models.WeatherRecord
	now       func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locations: make(map[string]models.Location),
		byAddress: make(map[string]string),
		records:   make(map[string]models.WeatherRecord),
		now:       time.Now,
	}
}

func (s *MemoryStore) GetRecordFor(ctx context.Context, locationID string) (models.WeatherRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[locationID]
	return rec, ok, nil
}

func (s *MemoryStore) UpsertRecordFor(ctx context.Context, locationID string, obs models.Observation, generatedAt time.Time) (models.WeatherRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[locationID]
	if !ok {
		rec = models.WeatherRecord{
			ID:         uuid.New().String(),
			LocationID: locationID,
		}
	}
	rec.Observation = obs
	rec.GeneratedAt = generatedAt
	rec.UpdatedAt = s.now().UTC()
	s.records[locationID] = rec
	return rec, nil
}

func (s *MemoryStore) CreateLocation(ctx context.Context, loc models.Location) (models.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := AddressKey(loc.Address)
	if _, exists := s.byAddress[key]; exists {
		return models.Location{}, ErrDuplicateAddress
	}
	if loc.ID == "" {
		loc.ID = uuid.New().String()
	}
	if loc.CreatedAt.IsZero() {
		loc.CreatedAt = s.now().UTC()
	}
	s.locations[loc.ID] = loc
	s.byAddress[key] = loc.ID
	return loc, nil
}

func (s *MemoryStore) GetLocation(ctx context.Context, id string) (models.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.locations[id]
	if !ok {
		return models.Location{}, ErrNotFound
	}
	return loc, nil
}

func (s *MemoryStore) FindLocationByAddress(ctx context.Context, address string) (models.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byAddress[AddressKey(address)]
	if !ok {
		return models.Location{}, ErrNotFound
	}
	return s.locations[id], nil
}

func (s *MemoryStore) RecentLocations(ctx context.Context, limit int) ([]models.Location, error) {
	s.mu.RLock()
	locs := make([]models.Location, 0, len(s.locations))
	for _, loc := range s.locations {
		locs = append(locs, loc)
	}
	s.mu.RUnlock()

	sort.Slice(locs, func(i, j int) bool {
		return locs[i].CreatedAt.After(locs[j].CreatedAt)
	})
	if limit > 0 && len(locs) > limit {
		locs = locs[:limit]
	}
	return locs, nil
}

func (s *MemoryStore) DeleteLocation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc, ok := s.locations[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byAddress, AddressKey(loc.Address))
	delete(s.locations, id)
	delete(s.records, id)
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

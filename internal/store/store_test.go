package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/weather-resolver/internal/models"
)

type storeFactory func(t *testing.T) Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "resolver.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func cupertino() models.Location {
	return models.Location{
		Address:    "1 Infinite Loop, Cupertino, CA",
		Latitude:   models.Float64(37.3318),
		Longitude:  models.Float64(-122.0312),
		PostalCode: "95014",
		City:       "Cupertino",
		State:      "California",
		Country:    "US",
	}
}

// TestStore_RecordUpsert verifies create-then-update keeps one record with a stable ID.
func TestStore_RecordUpsert(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			loc, err := s.CreateLocation(ctx, cupertino())
			require.NoError(t, err)

			_, ok, err := s.GetRecordFor(ctx, loc.ID)
			require.NoError(t, err)
			assert.False(t, ok, "no record before first upsert")

			t0 := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
			first, err := s.UpsertRecordFor(ctx, loc.ID, models.Observation{
				CurrentTemp: models.Float64(72.5),
				HighTemp:    models.Float64(80),
				LowTemp:     models.Float64(60),
				Conditions:  models.String("Sunny"),
			}, t0)
			require.NoError(t, err)
			assert.NotEmpty(t, first.ID)
			assert.Equal(t, loc.ID, first.LocationID)

			t1 := t0.Add(45 * time.Minute)
			second, err := s.UpsertRecordFor(ctx, loc.ID, models.Observation{
				CurrentTemp: models.Float64(65),
			}, t1)
			require.NoError(t, err)
			assert.Equal(t, first.ID, second.ID, "upsert must update in place")

			got, ok, err := s.GetRecordFor(ctx, loc.ID)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, first.ID, got.ID)
			assert.True(t, got.GeneratedAt.Equal(t1), "GeneratedAt = %v, want %v", got.GeneratedAt, t1)
			require.NotNil(t, got.CurrentTemp)
			assert.Equal(t, 65.0, *got.CurrentTemp)
			assert.Nil(t, got.HighTemp)
			assert.Nil(t, got.LowTemp)
			assert.Nil(t, got.Conditions)
		})
	}
}

// TestStore_DeleteCascades verifies deleting a Location removes its record.
func TestStore_DeleteCascades(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			loc, err := s.CreateLocation(ctx, cupertino())
			require.NoError(t, err)
			_, err = s.UpsertRecordFor(ctx, loc.ID, models.Observation{CurrentTemp: models.Float64(1)}, time.Now())
			require.NoError(t, err)

			require.NoError(t, s.DeleteLocation(ctx, loc.ID))

			_, err = s.GetLocation(ctx, loc.ID)
			assert.ErrorIs(t, err, ErrNotFound)
			_, ok, err := s.GetRecordFor(ctx, loc.ID)
			require.NoError(t, err)
			assert.False(t, ok, "record should be removed with its location")

			assert.ErrorIs(t, s.DeleteLocation(ctx, loc.ID), ErrNotFound)
		})
	}
}

// TestStore_Locations verifies lookup by ID and case-insensitive address.
func TestStore_Locations(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			created, err := s.CreateLocation(ctx, cupertino())
			require.NoError(t, err)
			assert.NotEmpty(t, created.ID)
			assert.False(t, created.CreatedAt.IsZero())

			got, err := s.GetLocation(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, created.Address, got.Address)
			assert.Equal(t, "95014", got.PostalCode)
			require.True(t, got.HasCoordinates())
			assert.Equal(t, 37.3318, *got.Latitude)

			found, err := s.FindLocationByAddress(ctx, "1 INFINITE LOOP, CUPERTINO, CA")
			require.NoError(t, err)
			assert.Equal(t, created.ID, found.ID)

			_, err = s.CreateLocation(ctx, models.Location{Address: "1 infinite loop, cupertino, ca"})
			assert.ErrorIs(t, err, ErrDuplicateAddress)

			_, err = s.FindLocationByAddress(ctx, "nowhere")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = s.GetLocation(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

// TestStore_AddressKeyUnicode verifies both backends fold non-ASCII case the same way.
func TestStore_AddressKeyUnicode(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			created, err := s.CreateLocation(ctx, models.Location{Address: "ZÜRICH"})
			require.NoError(t, err)

			_, err = s.CreateLocation(ctx, models.Location{Address: "zürich"})
			assert.ErrorIs(t, err, ErrDuplicateAddress)

			found, err := s.FindLocationByAddress(ctx, "Zürich")
			require.NoError(t, err)
			assert.Equal(t, created.ID, found.ID)

			require.NoError(t, s.DeleteLocation(ctx, created.ID))
			_, err = s.CreateLocation(ctx, models.Location{Address: "zürich"})
			assert.NoError(t, err, "address is free again after delete")
		})
	}
}

func TestAddressKey(t *testing.T) {
	assert.Equal(t, "zürich", AddressKey("  ZÜRICH "))
	assert.Equal(t, AddressKey("1 Infinite Loop"), AddressKey("1 INFINITE LOOP"))
}

// TestStore_UnresolvedLocation verifies nil coordinates round-trip as nil.
func TestStore_UnresolvedLocation(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			created, err := s.CreateLocation(ctx, models.Location{Address: "Somewhere"})
			require.NoError(t, err)

			got, err := s.GetLocation(ctx, created.ID)
			require.NoError(t, err)
			assert.False(t, got.HasCoordinates())
		})
	}
}

// TestStore_RecentLocations verifies newest-first ordering and the limit.
func TestStore_RecentLocations(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			for i, addr := range []string{"a", "b", "c"} {
				_, err := s.CreateLocation(ctx, models.Location{
					Address:   addr,
					CreatedAt: base.Add(time.Duration(i) * time.Hour),
				})
				require.NoError(t, err)
			}

			locs, err := s.RecentLocations(ctx, 2)
			require.NoError(t, err)
			require.Len(t, locs, 2)
			assert.Equal(t, "c", locs[0].Address)
			assert.Equal(t, "b", locs[1].Address)

			all, err := s.RecentLocations(ctx, 0)
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}

// TestStore_ConcurrentUpserts verifies concurrent writers leave exactly one record.
func TestStore_ConcurrentUpserts(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			loc, err := s.CreateLocation(ctx, cupertino())
			require.NoError(t, err)

			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := s.UpsertRecordFor(ctx, loc.ID, models.Observation{CurrentTemp: models.Float64(float64(i))}, time.Now())
					assert.NoError(t, err)
				}(i)
			}
			wg.Wait()

			rec, ok, err := s.GetRecordFor(ctx, loc.ID)
			require.NoError(t, err)
			require.True(t, ok)
			require.NotNil(t, rec.CurrentTemp)
		})
	}
}

// TestSQLiteStore_Ping verifies ping fails once the database is closed.
func TestSQLiteStore_Ping(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())
	assert.Error(t, s.Ping(context.Background()))
}

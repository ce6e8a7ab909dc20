package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/kjstillabower/weather-resolver/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS locations (
	id TEXT PRIMARY KEY,
	address TEXT NOT NULL,
	address_key TEXT NOT NULL,
	latitude REAL,
	longitude REAL,
	postal_code TEXT NOT NULL DEFAULT '',
	city TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT '',
	country TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_locations_address_key ON locations (address_key);
CREATE INDEX IF NOT EXISTS idx_locations_created_at ON locations (created_at);

CREATE TABLE IF NOT EXISTS weather_records (
	id TEXT PRIMARY KEY,
	location_id TEXT NOT NULL UNIQUE,
	current_temp REAL,
	high_temp REAL,
	low_temp REAL,
	conditions TEXT,
	generated_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	FOREIGN KEY (location_id) REFERENCES locations(id) ON DELETE CASCADE
);`

// SQLiteStore persists Locations and records in a SQLite database with foreign keys
// enabled, so deleting a Location cascades to its record.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
// path may be ":memory:".
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for SQLite: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_timeout=10000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) GetRecordFor(ctx context.Context, locationID string) (models.WeatherRecord, bool, error) {
	const query = `
		SELECT id, location_id, current_temp, high_temp, low_temp, conditions, generated_at, updated_at
		FROM weather_records
		WHERE location_id = ?`

	var rec models.WeatherRecord
	err := s.db.QueryRowContext(ctx, query, locationID).Scan(
		&rec.ID, &rec.LocationID, &rec.CurrentTemp, &rec.HighTemp, &rec.LowTemp,
		&rec.Conditions, &rec.GeneratedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.WeatherRecord{}, false, nil
	}
	if err != nil {
		return models.WeatherRecord{}, false, fmt.Errorf("failed to find weather record: %w", err)
	}
	return rec, true, nil
}

func (s *SQLiteStore) UpsertRecordFor(ctx context.Context, locationID string, obs models.Observation, generatedAt time.Time) (models.WeatherRecord, error) {
	const query = `
		INSERT INTO weather_records (
			id, location_id, current_temp, high_temp, low_temp, conditions, generated_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location_id) DO UPDATE SET
			current_temp = excluded.current_temp,
			high_temp = excluded.high_temp,
			low_temp = excluded.low_temp,
			conditions = excluded.conditions,
			generated_at = excluded.generated_at,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		uuid.New().String(), locationID, obs.CurrentTemp, obs.HighTemp, obs.LowTemp,
		obs.Conditions, generatedAt.UTC(), s.now().UTC(),
	)
	if err != nil {
		return models.WeatherRecord{}, fmt.Errorf("failed to upsert weather record: %w", err)
	}

	rec, ok, err := s.GetRecordFor(ctx, locationID)
	if err != nil {
		return models.WeatherRecord{}, err
	}
	if !ok {
		return models.WeatherRecord{}, fmt.Errorf("weather record for %s missing after upsert", locationID)
	}
	return rec, nil
}

func (s *SQLiteStore) CreateLocation(ctx context.Context, loc models.Location) (models.Location, error) {
	if loc.ID == "" {
		loc.ID = uuid.New().String()
	}
	if loc.CreatedAt.IsZero() {
		loc.CreatedAt = s.now()
	}
	loc.CreatedAt = loc.CreatedAt.UTC()

	const query = `
		INSERT INTO locations (
			id, address, address_key, latitude, longitude, postal_code, city, state, country, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		loc.ID, loc.Address, AddressKey(loc.Address), loc.Latitude, loc.Longitude, loc.PostalCode,
		loc.City, loc.State, loc.Country, loc.CreatedAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return models.Location{}, ErrDuplicateAddress
		}
		return models.Location{}, fmt.Errorf("failed to create location: %w", err)
	}
	return loc, nil
}

const locationColumns = `id, address, latitude, longitude, postal_code, city, state, country, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner) (models.Location, error) {
	var loc models.Location
	err := row.Scan(
		&loc.ID, &loc.Address, &loc.Latitude, &loc.Longitude, &loc.PostalCode,
		&loc.City, &loc.State, &loc.Country, &loc.CreatedAt,
	)
	return loc, err
}

func (s *SQLiteStore) GetLocation(ctx context.Context, id string) (models.Location, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = ?`, id)
	loc, err := scanLocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Location{}, ErrNotFound
	}
	if err != nil {
		return models.Location{}, fmt.Errorf("failed to find location by ID: %w", err)
	}
	return loc, nil
}

func (s *SQLiteStore) FindLocationByAddress(ctx context.Context, address string) (models.Location, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE address_key = ?`,
		AddressKey(address))
	loc, err := scanLocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Location{}, ErrNotFound
	}
	if err != nil {
		return models.Location{}, fmt.Errorf("failed to find location by address: %w", err)
	}
	return loc, nil
}

func (s *SQLiteStore) RecentLocations(ctx context.Context, limit int) ([]models.Location, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+locationColumns+` FROM locations ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	var locs []models.Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locs = append(locs, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate locations: %w", err)
	}
	return locs, nil
}

func (s *SQLiteStore) DeleteLocation(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete location: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

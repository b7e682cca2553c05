package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// LocationDB reads precomputed location aggregates out of Postgres.
type LocationDB struct {
	db *sqlx.DB
}

// OpenLocationDB connects to Postgres using a standard DSN.
func OpenLocationDB(dsn string) (*LocationDB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &LocationDB{db: db}, nil
}

// TopLocations returns the busiest accident clusters, most accidents
// first. The ordering matters: the ranking pipeline only ever looks at
// the head of this list.
func (l *LocationDB) TopLocations(limit int) ([]Location, error) {
	var locs []Location
	query := `
		SELECT latitude, longitude, accident_count, primary_severity, province, peak_hours
		FROM accident_locations
		ORDER BY accident_count DESC
		LIMIT $1
	`
	if err := l.db.Select(&locs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to load locations: %w", err)
	}
	return locs, nil
}

// Close closes the underlying connection pool.
func (l *LocationDB) Close() error {
	return l.db.Close()
}

// LoadLocationsFile reads location aggregates from a local JSON export.
// Used when no Postgres DSN is configured, and in tests.
func LoadLocationsFile(path string) ([]Location, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read locations file: %w", err)
	}
	var locs []Location
	if err := json.Unmarshal(data, &locs); err != nil {
		return nil, fmt.Errorf("failed to parse locations file: %w", err)
	}
	return locs, nil
}

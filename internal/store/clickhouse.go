package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Config holds ClickHouse connection configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Debug    bool
}

// DefaultConfig returns default development configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     9000,
		Database: "roadrisk",
		Username: "default",
		Password: "",
		Debug:    false,
	}
}

// ClickHouseStore implements RecordStore over the accident_events table.
// The corpus is append-only and query-heavy, which suits a columnar
// store much better than a row store.
type ClickHouseStore struct {
	conn clickhouse.Conn
	cfg  *Config
}

// NewClickHouseStore opens a connection to ClickHouse.
func NewClickHouseStore(cfg *Config) (*ClickHouseStore, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	return &ClickHouseStore{conn: conn, cfg: cfg}, nil
}

// Ping checks database connectivity.
func (s *ClickHouseStore) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the database connection.
func (s *ClickHouseStore) Close() error {
	return s.conn.Close()
}

const eventColumns = `
	id, accident_datetime, accident_type, province, vehicle_type,
	weather_condition, presumed_cause, number_of_fatalities,
	number_of_injuries_serious, number_of_injuries_minor,
	latitude, longitude, severity_score, location_name, source
`

// GetEvents returns one page of events ordered by time then id, plus the
// total count for the same filters.
func (s *ClickHouseStore) GetEvents(ctx context.Context, f Filters, limit, offset int) ([]AccidentRecord, int, error) {
	where, args := buildWhere(f)

	countQuery := "SELECT count() FROM accident_events" + where
	var total uint64
	if err := s.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM accident_events%s ORDER BY accident_datetime, id LIMIT %d OFFSET %d",
		eventColumns, where, limit, offset,
	)
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []AccidentRecord
	for rows.Next() {
		var (
			r                     AccidentRecord
			fatal, serious, minor int32
			severity              int32
		)
		if err := rows.Scan(
			&r.ID, &r.DateTime, &r.AccidentType, &r.Province, &r.Vehicle,
			&r.Weather, &r.PresumedCause, &fatal, &serious, &minor,
			&r.Latitude, &r.Longitude, &severity, &r.LocationName, &r.Source,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan event: %w", err)
		}
		r.Fatalities = int(fatal)
		r.SeriousInjured = int(serious)
		r.MinorInjured = int(minor)
		r.SeverityScore = int(severity)
		events = append(events, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read events: %w", err)
	}
	return events, int(total), nil
}

// InsertEvents inserts a batch of accident records using a prepared
// batch insert.
func (s *ClickHouseStore) InsertEvents(ctx context.Context, events []AccidentRecord) error {
	if len(events) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx,
		"INSERT INTO accident_events ("+eventColumns+")",
	)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, e := range events {
		if err := batch.Append(
			e.ID, e.DateTime, e.AccidentType, e.Province, e.Vehicle,
			e.Weather, e.PresumedCause, int32(e.Fatalities),
			int32(e.SeriousInjured), int32(e.MinorInjured),
			e.Latitude, e.Longitude, int32(e.SeverityScore),
			e.LocationName, e.Source,
		); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}
	return batch.Send()
}

// CountNearby counts accidents within a rough 10km box of a point.
// A bounding box is close enough for the density bands the calibrator
// uses and avoids a haversine over the whole table.
func (s *ClickHouseStore) CountNearby(ctx context.Context, lat, lon float64) (int, error) {
	// 0.09 degrees is about 10km at Thai latitudes.
	const delta = 0.09
	query := `
		SELECT count() FROM accident_events
		WHERE latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?
	`
	var count uint64
	err := s.conn.QueryRow(ctx, query, lat-delta, lat+delta, lon-delta, lon+delta).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count nearby events: %w", err)
	}
	return int(count), nil
}

func buildWhere(f Filters) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if !f.From.IsZero() {
		clauses = append(clauses, "accident_datetime >= ?")
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		clauses = append(clauses, "accident_datetime <= ?")
		args = append(args, f.To)
	}
	if f.Province != "" {
		clauses = append(clauses, "province = ?")
		args = append(args, f.Province)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

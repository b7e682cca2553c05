// Package store provides access to the historical accident corpus and
// the precomputed location aggregates the ranking pipeline runs over.
package store

import (
	"context"
	"time"
)

// AccidentRecord is one historical accident event.
type AccidentRecord struct {
	ID             uint64    `ch:"id" json:"id"`
	DateTime       time.Time `ch:"accident_datetime" json:"accident_datetime"`
	AccidentType   string    `ch:"accident_type" json:"accident_type"`
	Province       string    `ch:"province" json:"province"`
	Vehicle        string    `ch:"vehicle_type" json:"vehicle_type"`
	Weather        string    `ch:"weather_condition" json:"weather_condition"`
	PresumedCause  string    `ch:"presumed_cause" json:"presumed_cause"`
	Fatalities     int       `ch:"number_of_fatalities" json:"number_of_fatalities"`
	SeriousInjured int       `ch:"number_of_injuries_serious" json:"number_of_injuries_serious"`
	MinorInjured   int       `ch:"number_of_injuries_minor" json:"number_of_injuries_minor"`
	Latitude       float64   `ch:"latitude" json:"latitude"`
	Longitude      float64   `ch:"longitude" json:"longitude"`
	SeverityScore  int       `ch:"severity_score" json:"severity_score"`
	LocationName   string    `ch:"location_name" json:"location_name"`
	Source         string    `ch:"source" json:"source"`
}

// Filters narrows an event query. Zero-valued fields are not applied.
type Filters struct {
	From     time.Time
	To       time.Time
	Province string
}

// RecordStore reads pages of accident events. Implementations must
// return a stable ordering so pagination is consistent across calls.
type RecordStore interface {
	// GetEvents returns one page of matching events plus the total
	// matching count.
	GetEvents(ctx context.Context, f Filters, limit, offset int) ([]AccidentRecord, int, error)
	Ping(ctx context.Context) error
	Close() error
}

// Location is a precomputed accident-cluster aggregate used to seed
// hotspot ranking.
type Location struct {
	Latitude        float64 `db:"latitude" json:"latitude"`
	Longitude       float64 `db:"longitude" json:"longitude"`
	AccidentCount   int     `db:"accident_count" json:"accident_count"`
	PrimarySeverity string  `db:"primary_severity" json:"primary_severity"`
	Province        string  `db:"province" json:"province"`
	PeakHours       string  `db:"peak_hours" json:"peak_hours"`
}

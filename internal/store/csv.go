package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Accepted datetime layouts in event CSV exports.
var csvTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// EventCSVReader streams accident records from a header-mapped CSV
// export. Column order does not matter; unknown columns are ignored.
type EventCSVReader struct {
	r      *csv.Reader
	cols   map[string]int
	nextID uint64
	line   int
}

// NewEventCSVReader reads the header row and resolves the column map.
// The accident_datetime, latitude and longitude columns are required.
func NewEventCSVReader(r io.Reader) (*EventCSVReader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range []string{"accident_datetime", "latitude", "longitude"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("CSV is missing required column %q", required)
		}
	}
	return &EventCSVReader{r: cr, cols: cols, nextID: 1, line: 1}, nil
}

// Next returns the next record, or io.EOF when the input is exhausted.
// Rows with an unparseable datetime or coordinates fail individually so
// the caller can count and skip them.
func (e *EventCSVReader) Next() (AccidentRecord, error) {
	row, err := e.r.Read()
	if err != nil {
		return AccidentRecord{}, err
	}
	e.line++

	get := func(col string) string {
		i, ok := e.cols[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	dt, err := parseCSVTime(get("accident_datetime"))
	if err != nil {
		return AccidentRecord{}, fmt.Errorf("line %d: %w", e.line, err)
	}
	lat, err := strconv.ParseFloat(get("latitude"), 64)
	if err != nil {
		return AccidentRecord{}, fmt.Errorf("line %d: invalid latitude %q", e.line, get("latitude"))
	}
	lon, err := strconv.ParseFloat(get("longitude"), 64)
	if err != nil {
		return AccidentRecord{}, fmt.Errorf("line %d: invalid longitude %q", e.line, get("longitude"))
	}

	id := e.nextID
	if v := get("id"); v != "" {
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil {
			id = parsed
		}
	}
	e.nextID = id + 1

	return AccidentRecord{
		ID:             id,
		DateTime:       dt,
		AccidentType:   get("accident_type"),
		Province:       get("province"),
		Vehicle:        get("vehicle_type"),
		Weather:        get("weather_condition"),
		PresumedCause:  get("presumed_cause"),
		Fatalities:     atoiDefault(get("number_of_fatalities")),
		SeriousInjured: atoiDefault(get("number_of_injuries_serious")),
		MinorInjured:   atoiDefault(get("number_of_injuries_minor")),
		Latitude:       lat,
		Longitude:      lon,
		SeverityScore:  atoiDefault(get("severity_score")),
		LocationName:   get("location_name"),
		Source:         get("source"),
	}, nil
}

func parseCSVTime(v string) (time.Time, error) {
	for _, layout := range csvTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid accident_datetime %q", v)
}

func atoiDefault(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

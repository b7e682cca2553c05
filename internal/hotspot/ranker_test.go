package hotspot

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadrisk/internal/feature"
	"roadrisk/internal/model"
)

// fakeClassifier labels every row with a fixed class.
type fakeClassifier struct {
	label string
	calls int
	rows  int
}

func (f *fakeClassifier) Predict(rows [][]float64) ([]model.Prediction, error) {
	f.calls++
	f.rows = len(rows)
	out := make([]model.Prediction, len(rows))
	for i := range out {
		out[i] = model.Prediction{Class: 0, Label: f.label, Probs: []float64{0.8, 0.1, 0.1}}
	}
	return out, nil
}

// fakeGeocoder records how many coordinates were resolved.
type fakeGeocoder struct {
	calls int
}

func (f *fakeGeocoder) DisplayName(_ context.Context, lat, lon float64, _ int) string {
	f.calls++
	return fmt.Sprintf("road at %.2f,%.2f", lat, lon)
}

func testLocations(n int) []Location {
	locs := make([]Location, n)
	for i := range locs {
		locs[i] = Location{
			Latitude:      13.0 + float64(i)*0.01,
			Longitude:     100.0 + float64(i)*0.01,
			AccidentCount: n - i, // sorted by count descending
			Province:      "Bangkok",
		}
	}
	return locs
}

func TestHistoricalRiskScaling(t *testing.T) {
	cond := Conditions{Hour: 12, DayOfWeek: 0}

	// The busiest cluster maps to 100, a single accident to the floor
	// of 10.
	// fatal: round(90*0.7 + 100*0.3) = 93
	assert.Equal(t, 93, combinedScore("fatal", 358, 358, cond))
	// round(90*0.7 + 10*0.3) = 66
	assert.Equal(t, 66, combinedScore("fatal", 1, 358, cond))

	// Intermediate counts scale logarithmically.
	// hist = round(ln(36)/ln(358)*100) = round(60.96) = 61
	// round(63 + 61*0.3) = round(81.3) = 81
	assert.Equal(t, 81, combinedScore("fatal", 36, 358, cond))
}

func TestConditionBumpsClampAt100(t *testing.T) {
	cond := Conditions{Hour: 18, DayOfWeek: 5, Rainfall: 10}
	// 93 base, +15 rain, +10 hour, +5 weekend, each step clamped
	assert.Equal(t, 100, combinedScore("fatal", 358, 358, cond))

	quiet := Conditions{Hour: 12, DayOfWeek: 2}
	// minor: round(30*0.7 + 100*0.3) = 51, no bumps
	assert.Equal(t, 51, combinedScore("minor_injury", 358, 358, quiet))
}

func TestRankOrderingAndThreshold(t *testing.T) {
	fc := &fakeClassifier{label: "fatal"}
	fg := &fakeGeocoder{}
	r := NewRanker(feature.NewBuilder(), fc, fg, testLocations(200), zerolog.Nop())

	ranking, err := r.Rank(context.Background(), Conditions{Hour: 12, DayOfWeek: 0})
	require.NoError(t, err)

	assert.Equal(t, 200, ranking.TotalChecked)
	assert.Equal(t, 1, fc.calls, "one batch prediction per run")
	assert.Equal(t, 200, fc.rows)

	require.NotEmpty(t, ranking.Hotspots)
	assert.Equal(t, len(ranking.Hotspots), ranking.Found)
	for i, h := range ranking.Hotspots {
		assert.GreaterOrEqual(t, h.RiskScore, qualifyingScore)
		if i > 0 {
			assert.LessOrEqual(t, h.RiskScore, ranking.Hotspots[i-1].RiskScore, "sorted descending")
		}
	}
}

func TestRankGeocodesOnlyTheHead(t *testing.T) {
	fc := &fakeClassifier{label: "fatal"}
	fg := &fakeGeocoder{}
	r := NewRanker(feature.NewBuilder(), fc, fg, testLocations(300), zerolog.Nop())

	ranking, err := r.Rank(context.Background(), Conditions{Hour: 12, DayOfWeek: 0})
	require.NoError(t, err)
	require.Greater(t, len(ranking.Hotspots), geocodeTop)

	assert.Equal(t, geocodeTop, fg.calls)
	assert.Contains(t, ranking.Hotspots[0].Name, "road at")
	assert.Contains(t, ranking.Hotspots[geocodeTop].Name, "Risk zone (")
}

func TestRankCapsBatchAndResults(t *testing.T) {
	fc := &fakeClassifier{label: "fatal"}
	fg := &fakeGeocoder{}
	r := NewRanker(feature.NewBuilder(), fc, fg, testLocations(6000), zerolog.Nop())

	ranking, err := r.Rank(context.Background(), Conditions{Hour: 18, DayOfWeek: 5, Rainfall: 10})
	require.NoError(t, err)

	assert.Equal(t, batchLimit, ranking.TotalChecked)
	assert.Equal(t, batchLimit, fc.rows)
	assert.Equal(t, 6000, ranking.TotalAvailable)
	assert.LessOrEqual(t, len(ranking.Hotspots), maxResults)
}

func TestRankEmptyLocations(t *testing.T) {
	fc := &fakeClassifier{label: "fatal"}
	r := NewRanker(feature.NewBuilder(), fc, &fakeGeocoder{}, nil, zerolog.Nop())

	ranking, err := r.Rank(context.Background(), Conditions{Hour: 12})
	require.NoError(t, err)
	assert.Zero(t, ranking.TotalChecked)
	assert.Zero(t, ranking.Found)
	assert.Empty(t, ranking.Hotspots)
	assert.Zero(t, fc.calls)
}

func TestMinorSeverityFiltersOut(t *testing.T) {
	// Minor predictions on sparse clusters score below the threshold
	// under quiet conditions.
	fc := &fakeClassifier{label: "minor_injury"}
	locs := []Location{{Latitude: 13, Longitude: 100, AccidentCount: 1}}
	r := NewRanker(feature.NewBuilder(), fc, &fakeGeocoder{}, locs, zerolog.Nop())

	ranking, err := r.Rank(context.Background(), Conditions{Hour: 12, DayOfWeek: 2})
	require.NoError(t, err)
	assert.Zero(t, ranking.Found)
}

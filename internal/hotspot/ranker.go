// Package hotspot scores the national accident-cluster list under a set
// of travel conditions and returns the highest-risk zones.
package hotspot

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"roadrisk/internal/feature"
	"roadrisk/internal/geocode"
	"roadrisk/internal/metrics"
	"roadrisk/internal/model"
)

const (
	// batchLimit caps how many clusters one ranking run classifies.
	batchLimit = 5000
	// maxResults caps the returned hotspot list.
	maxResults = 1000
	// geocodeTop is how many of the leading results get a real road
	// name; the rest keep a synthetic label.
	geocodeTop = 100
	// qualifyingScore is the minimum combined score a cluster needs to
	// appear in the results.
	qualifyingScore = 50

	mlWeight         = 0.7
	historicalWeight = 0.3
)

// severityBase anchors each predicted class to a base risk, mirroring
// the single-point calibration anchors.
var severityBase = map[string]int{
	"minor_injury":   30,
	"serious_injury": 60,
	"fatal":          90,
}

const unknownSeverityBase = 40

// Conditions are the shared travel conditions a ranking run evaluates
// every cluster under.
type Conditions struct {
	Hour           int     `json:"hour"`
	DayOfWeek      int     `json:"day_of_week"` // 0 = Monday .. 6 = Sunday
	Month          int     `json:"month"`
	Rainfall       float64 `json:"rainfall"`
	TrafficDensity float64 `json:"traffic_density"`
	// MinProbability is accepted for wire compatibility but has no
	// effect on ranking.
	MinProbability float64 `json:"min_probability,omitempty"`
}

// Location is one precomputed accident cluster to score.
type Location struct {
	Latitude        float64
	Longitude       float64
	AccidentCount   int
	PrimarySeverity string
	Province        string
	PeakHours       string
}

// Hotspot is one qualifying zone in ranked output.
type Hotspot struct {
	Name               string  `json:"name"`
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	Severity           string  `json:"severity"`
	RiskScore          int     `json:"risk_score"`
	AccidentCount      int     `json:"accident_count"`
	Province           string  `json:"province"`
	HistoricalSeverity string  `json:"historical_severity"`
	PeakHours          string  `json:"peak_hours"`
}

// Ranking is the full result of one run.
type Ranking struct {
	TotalChecked   int        `json:"total_locations_checked"`
	Found          int        `json:"hotspots_found"`
	TotalAvailable int        `json:"total_locations_available"`
	Conditions     Conditions `json:"conditions"`
	Hotspots       []Hotspot  `json:"hotspots"`
}

// classifier is the slice of the model the ranker needs.
type classifier interface {
	Predict(rows [][]float64) ([]model.Prediction, error)
}

// geocoder names a coordinate. May be backed by a live reverse-geocoding
// client or a fixture.
type geocoder interface {
	DisplayName(ctx context.Context, lat, lon float64, accidentCount int) string
}

// Ranker runs hotspot rankings over a fixed location list.
type Ranker struct {
	builder    *feature.Builder
	classifier classifier
	geocoder   geocoder
	locations  []Location
	log        zerolog.Logger
}

// NewRanker builds a ranker. The location list must already be sorted by
// accident count descending; only the head is ever classified.
func NewRanker(b *feature.Builder, c classifier, g geocoder, locations []Location, log zerolog.Logger) *Ranker {
	return &Ranker{
		builder:    b,
		classifier: c,
		geocoder:   g,
		locations:  locations,
		log:        log.With().Str("component", "hotspot").Logger(),
	}
}

// Rank classifies the busiest clusters under the given conditions and
// returns the qualifying zones, highest risk first.
func (r *Ranker) Rank(ctx context.Context, cond Conditions) (*Ranking, error) {
	start := time.Now()
	metrics.HotspotRunsTotal.Inc()

	checked := r.locations
	if len(checked) > batchLimit {
		checked = checked[:batchLimit]
	}
	if len(checked) == 0 {
		return &Ranking{Conditions: cond, Hotspots: []Hotspot{}}, nil
	}

	contexts := make([]feature.Context, len(checked))
	for i, loc := range checked {
		c := feature.Defaults()
		c.Latitude = loc.Latitude
		c.Longitude = loc.Longitude
		c.Hour = cond.Hour
		c.DayOfWeek = cond.DayOfWeek
		c.Month = cond.Month
		c.Rainfall = cond.Rainfall
		c.TrafficDensity = cond.TrafficDensity
		contexts[i] = c
	}

	// One batch prediction for the whole run. Per-location calls would
	// dominate the latency budget.
	preds, err := r.classifier.Predict(r.builder.Matrix(contexts))
	if err != nil {
		return nil, err
	}

	maxCount := 1
	for _, loc := range checked {
		if loc.AccidentCount > maxCount {
			maxCount = loc.AccidentCount
		}
	}

	var hotspots []Hotspot
	for i, loc := range checked {
		score := combinedScore(preds[i].Label, loc.AccidentCount, maxCount, cond)
		if score < qualifyingScore {
			continue
		}
		hotspots = append(hotspots, Hotspot{
			Latitude:           loc.Latitude,
			Longitude:          loc.Longitude,
			Severity:           preds[i].Label,
			RiskScore:          score,
			AccidentCount:      loc.AccidentCount,
			Province:           loc.Province,
			HistoricalSeverity: loc.PrimarySeverity,
			PeakHours:          loc.PeakHours,
		})
	}

	sort.SliceStable(hotspots, func(a, b int) bool {
		return hotspots[a].RiskScore > hotspots[b].RiskScore
	})
	if len(hotspots) > maxResults {
		hotspots = hotspots[:maxResults]
	}

	for i := range hotspots {
		h := &hotspots[i]
		if i < geocodeTop {
			h.Name = r.geocoder.DisplayName(ctx, h.Latitude, h.Longitude, h.AccidentCount)
		} else {
			h.Name = geocode.SyntheticName(h.AccidentCount)
		}
	}

	elapsed := time.Since(start)
	metrics.HotspotDurationMs.Observe(float64(elapsed.Milliseconds()))
	r.log.Info().
		Int("checked", len(checked)).
		Int("found", len(hotspots)).
		Dur("elapsed", elapsed).
		Msg("hotspot ranking complete")

	return &Ranking{
		TotalChecked:   len(checked),
		Found:          len(hotspots),
		TotalAvailable: len(r.locations),
		Conditions:     cond,
		Hotspots:       hotspots,
	}, nil
}

// combinedScore blends the model's severity signal with the cluster's
// historical weight, then bumps for adverse conditions. Clamped to 100
// after each bump.
func combinedScore(severity string, count, maxCount int, cond Conditions) int {
	base, ok := severityBase[severity]
	if !ok {
		base = unknownSeverityBase
	}

	historical := 10
	if count > 1 && maxCount > 1 {
		historical = int(math.Round(math.Log(float64(count)) / math.Log(float64(maxCount)) * 100))
	}

	score := int(math.Round(float64(base)*mlWeight + float64(historical)*historicalWeight))

	if cond.Rainfall > 5 {
		score = min100(score + 15)
	}
	switch cond.Hour {
	case 7, 8, 17, 18, 19:
		score = min100(score + 10)
	}
	if cond.DayOfWeek == 5 || cond.DayOfWeek == 6 {
		score = min100(score + 5)
	}
	return score
}

func min100(s int) int {
	if s > 100 {
		return 100
	}
	return s
}

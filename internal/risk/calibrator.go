// Package risk turns raw severity classifications into calibrated risk
// assessments: a 0-100 score, a discrete level, the contextual factors
// that moved the score, and driver-facing recommendations.
package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"roadrisk/internal/feature"
	"roadrisk/internal/model"
)

// Level buckets a calibrated score.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelVeryHigh Level = "very_high"
)

// LevelFor maps a clamped score to its level. Boundaries are inclusive
// on the upper side: 30 is already medium, 50 high, 70 very_high.
func LevelFor(score int) Level {
	switch {
	case score < 30:
		return LevelLow
	case score < 50:
		return LevelMedium
	case score < 70:
		return LevelHigh
	default:
		return LevelVeryHigh
	}
}

// Assessment is the full calibrated result for one prediction.
type Assessment struct {
	ID              string             `json:"assessment_id"`
	Severity        string             `json:"predicted_severity"`
	Probabilities   map[string]float64 `json:"probabilities"`
	Score           int                `json:"risk_score"`
	Level           Level              `json:"risk_level"`
	Confidence      float64            `json:"confidence"`
	Factors         []string           `json:"contributing_factors"`
	Recommendations []string           `json:"recommendations"`
	EvaluatedAt     time.Time          `json:"evaluated_at"`
}

// severityBase anchors each predicted class to a starting score.
var severityBase = map[string]int{
	"minor_injury":   30,
	"serious_injury": 60,
	"fatal":          90,
}

const unknownSeverityBase = 40

// adjustment is one contextual bump. Within a group only the first
// matching row fires; groups apply in order and the score is clamped to
// [0, 100] after every group.
type adjustment struct {
	applies func(in Input) bool
	delta   int
	factor  func(in Input) string
}

// Input carries the context an assessment is calibrated against. It is
// deliberately narrower than feature.Context: only signals that adjust
// the calibrated score appear here.
type Input struct {
	Hour            int
	DayOfWeek       int // 0 = Monday .. 6 = Sunday
	Rainfall        float64
	CongestionLevel string
	IsRushHour      bool
	IsWeekend       bool
	NearbyAccidents int
}

// InputFromContext projects the prediction context onto the calibration
// signals, with nearby-accident density supplied by the caller.
func InputFromContext(c feature.Context, nearby int) Input {
	return Input{
		Hour:            c.Hour,
		DayOfWeek:       c.DayOfWeek,
		Rainfall:        c.Rainfall,
		CongestionLevel: c.CongestionLevel,
		IsRushHour:      c.IsRushHour,
		IsWeekend:       c.IsWeekend,
		NearbyAccidents: nearby,
	}
}

func isNight(h int) bool { return h >= 20 || h <= 5 }

func text(s string) func(Input) string {
	return func(Input) string { return s }
}

func nearbyText(prefix string) func(Input) string {
	return func(in Input) string {
		return fmt.Sprintf("%s accident history (%d accidents within 10km)", prefix, in.NearbyAccidents)
	}
}

// adjustmentGroups is the ordered calibration table. Row order within a
// group encodes band precedence; group order fixes both the clamping
// sequence and the order factors are reported in.
var adjustmentGroups = [][]adjustment{
	{
		{func(in Input) bool { return in.NearbyAccidents > 80 }, 20, nearbyText("Very high")},
		{func(in Input) bool { return in.NearbyAccidents > 50 }, 15, nearbyText("High")},
		{func(in Input) bool { return in.NearbyAccidents > 20 }, 10, nearbyText("Moderate")},
		{func(in Input) bool { return in.NearbyAccidents > 5 }, 5, nearbyText("Some")},
	},
	{
		{func(in Input) bool { return in.Rainfall > 10 }, 15, text("Heavy rain (reduced visibility and traction)")},
		{func(in Input) bool { return in.Rainfall > 5 }, 10, text("Moderate rain (slippery roads)")},
		{func(in Input) bool { return in.Rainfall > 0 }, 5, text("Light rain (wet conditions)")},
	},
	{
		{func(in Input) bool { return isNight(in.Hour) }, 10, text("Night time (reduced visibility, driver fatigue)")},
	},
	{
		{
			func(in Input) bool {
				return in.IsRushHour || (in.Hour >= 7 && in.Hour <= 9) || (in.Hour >= 17 && in.Hour <= 19)
			},
			8, text("Rush hour (high traffic volume, stress)"),
		},
	},
	{
		{func(in Input) bool { return in.DayOfWeek == 4 }, 5, text("Friday evening (end of work week, driver fatigue)")},
		{func(in Input) bool { return in.DayOfWeek == 5 }, 3, text("Saturday (weekend leisure travel, varied driver experience)")},
		{func(in Input) bool { return in.DayOfWeek == 6 }, 3, text("Sunday (return travel, tired drivers)")},
	},
	{
		// Informational only: the weekend flag set on a weekday adds no
		// score but still shows up in the reported factors.
		{func(in Input) bool { return in.IsWeekend && in.DayOfWeek != 5 && in.DayOfWeek != 6 }, 0, text("Weekend (higher recreational traffic)")},
	},
	{
		{func(in Input) bool { return in.CongestionLevel == "high" }, 7, text("High traffic congestion (stop-and-go, rear-end risk)")},
		{func(in Input) bool { return in.CongestionLevel == "moderate" }, 4, text("Moderate traffic (reduced maneuverability)")},
	},
}

// Calibrator converts model predictions into assessments. The label
// slice must match the classifier's class ordering.
type Calibrator struct {
	labels []string
	now    func() time.Time
}

// NewCalibrator builds a calibrator for a model with the given class
// labels, stamping assessments with wall-clock time.
func NewCalibrator(labels []string) *Calibrator {
	return &Calibrator{labels: labels, now: time.Now}
}

// WithClock substitutes the timestamp source. Intended for tests.
func (c *Calibrator) WithClock(now func() time.Time) *Calibrator {
	c.now = now
	return c
}

// Assess calibrates one prediction against its context.
func (c *Calibrator) Assess(pred model.Prediction, in Input) Assessment {
	base, ok := severityBase[pred.Label]
	if !ok {
		base = unknownSeverityBase
	}

	conf := pred.Confidence()
	mult := conf
	if conf >= 0.5 {
		mult = 0.7 + 0.3*conf
	}
	score := int(math.Floor(float64(base) * mult))
	score = clamp(score)

	factors := make([]string, 0, len(adjustmentGroups))
	for _, group := range adjustmentGroups {
		for _, adj := range group {
			if adj.applies(in) {
				score = clamp(score + adj.delta)
				factors = append(factors, adj.factor(in))
				break
			}
		}
	}

	probs := make(map[string]float64, len(pred.Probs))
	for i, p := range pred.Probs {
		if i < len(c.labels) {
			probs[c.labels[i]] = p
		}
	}

	return Assessment{
		ID:              uuid.NewString(),
		Severity:        pred.Label,
		Probabilities:   probs,
		Score:           score,
		Level:           LevelFor(score),
		Confidence:      conf,
		Factors:         factors,
		Recommendations: recommend(pred, factors),
		EvaluatedAt:     c.now().UTC(),
	}
}

func clamp(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

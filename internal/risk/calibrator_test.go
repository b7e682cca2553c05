package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadrisk/internal/model"
)

var labels = []string{"fatal", "minor_injury", "serious_injury"}

func pred(class int, probs ...float64) model.Prediction {
	return model.Prediction{Class: class, Label: labels[class], Probs: probs}
}

func newCalibrator() *Calibrator {
	return NewCalibrator(labels).WithClock(func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	})
}

// quietInput produces no contextual adjustments at all.
func quietInput() Input {
	return Input{Hour: 12, DayOfWeek: 0}
}

func TestLevelBoundaries(t *testing.T) {
	tests := []struct {
		score int
		want  Level
	}{
		{0, LevelLow},
		{29, LevelLow},
		{30, LevelMedium},
		{49, LevelMedium},
		{50, LevelHigh},
		{69, LevelHigh},
		{70, LevelVeryHigh},
		{100, LevelVeryHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFor(tt.score), "score %d", tt.score)
	}
}

func TestConfidenceScaling(t *testing.T) {
	c := newCalibrator()

	// Low confidence scales the base down hard: serious at 0.4
	// confidence lands at floor(60 * 0.4) = 24.
	a := c.Assess(pred(2, 0.3, 0.3, 0.4), quietInput())
	assert.Equal(t, 24, a.Score)
	assert.Equal(t, LevelLow, a.Level)
	assert.InDelta(t, 0.4, a.Confidence, 1e-12)
	assert.Empty(t, a.Factors)

	// At and above 0.5 the multiplier switches to 0.7 + 0.3*conf.
	a = c.Assess(pred(2, 0.25, 0.25, 0.5), quietInput())
	assert.Equal(t, 51, a.Score) // floor(60 * 0.85)

	a = c.Assess(pred(0, 0.1, 0.1, 0.8), quietInput())
	assert.Equal(t, 84, a.Score) // floor(90 * 0.94), fatal
	assert.Equal(t, LevelVeryHigh, a.Level)
}

func TestUnknownSeverityBase(t *testing.T) {
	c := newCalibrator()
	p := model.Prediction{Class: 0, Label: "mystery", Probs: []float64{0.8, 0.1, 0.1}}
	a := c.Assess(p, quietInput())
	assert.Equal(t, 37, a.Score) // floor(40 * 0.94)
}

func TestAdjustmentBandsFirstMatchWins(t *testing.T) {
	c := newCalibrator()

	a := c.Assess(pred(2, 0.1, 0.1, 0.8), Input{Hour: 12, NearbyAccidents: 81})
	require.Len(t, a.Factors, 1)
	assert.Equal(t, "Very high accident history (81 accidents within 10km)", a.Factors[0])
	// floor(60*0.94)=56, +20 = 76
	assert.Equal(t, 76, a.Score)

	a = c.Assess(pred(2, 0.1, 0.1, 0.8), Input{Hour: 12, NearbyAccidents: 21})
	require.Len(t, a.Factors, 1)
	assert.Equal(t, "Moderate accident history (21 accidents within 10km)", a.Factors[0])
	assert.Equal(t, 66, a.Score)

	a = c.Assess(pred(2, 0.1, 0.1, 0.8), Input{Hour: 12, Rainfall: 6})
	require.Len(t, a.Factors, 1)
	assert.Equal(t, "Moderate rain (slippery roads)", a.Factors[0])
	assert.Equal(t, 66, a.Score)
}

func TestFullContextAssessment(t *testing.T) {
	c := newCalibrator()

	// Fatal prediction at 0.8 confidence, heavy context: dense accident
	// history, heavy rain, evening rush on a Friday.
	in := Input{
		Hour:            18,
		DayOfWeek:       4,
		Rainfall:        12,
		NearbyAccidents: 100,
	}
	a := c.Assess(pred(0, 0.8, 0.1, 0.1), in)

	assert.Equal(t, 100, a.Score)
	assert.Equal(t, LevelVeryHigh, a.Level)
	assert.Equal(t, "fatal", a.Severity)
	require.Equal(t, []string{
		"Very high accident history (100 accidents within 10km)",
		"Heavy rain (reduced visibility and traction)",
		"Rush hour (high traffic volume, stress)",
		"Friday evening (end of work week, driver fatigue)",
	}, a.Factors)

	require.Len(t, a.Recommendations, 6)
	assert.Equal(t, "HIGH RISK - Exercise extreme caution", a.Recommendations[0])

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), a.EvaluatedAt)
	assert.InDelta(t, 0.8, a.Probabilities["fatal"], 1e-12)
	assert.InDelta(t, 0.1, a.Probabilities["minor_injury"], 1e-12)
}

func TestNightAndCongestionAdjustments(t *testing.T) {
	c := newCalibrator()

	in := Input{Hour: 23, DayOfWeek: 6, CongestionLevel: "high"}
	a := c.Assess(pred(1, 0.1, 0.8, 0.1), in)

	// floor(30*0.94)=28, +10 night, +3 Sunday, +7 congestion = 48
	assert.Equal(t, 48, a.Score)
	assert.Equal(t, LevelMedium, a.Level)
	require.Equal(t, []string{
		"Night time (reduced visibility, driver fatigue)",
		"Sunday (return travel, tired drivers)",
		"High traffic congestion (stop-and-go, rear-end risk)",
	}, a.Factors)
}

func TestWeekendFlagOnWeekdayIsInformational(t *testing.T) {
	c := newCalibrator()

	in := Input{Hour: 12, DayOfWeek: 2, IsWeekend: true}
	a := c.Assess(pred(1, 0.1, 0.8, 0.1), in)
	assert.Equal(t, 28, a.Score) // no score change
	require.Equal(t, []string{"Weekend (higher recreational traffic)"}, a.Factors)

	// On an actual Saturday the day-of-week factor wins instead.
	in = Input{Hour: 12, DayOfWeek: 5, IsWeekend: true}
	a = c.Assess(pred(1, 0.1, 0.8, 0.1), in)
	require.Equal(t, []string{"Saturday (weekend leisure travel, varied driver experience)"}, a.Factors)
}

func TestScoreClampedAt100(t *testing.T) {
	c := newCalibrator()

	in := Input{
		Hour:            18,
		DayOfWeek:       4,
		Rainfall:        20,
		CongestionLevel: "high",
		NearbyAccidents: 500,
	}
	a := c.Assess(pred(0, 0.05, 0.05, 0.9), in)
	assert.Equal(t, 100, a.Score)
}

func TestRecommendations(t *testing.T) {
	t.Run("uncertain prediction warns", func(t *testing.T) {
		recs := recommend(pred(1, 0.3, 0.4, 0.3), nil)
		assert.Contains(t, recs, "Conditions are unpredictable - exercise extra caution")
	})

	t.Run("serious baseline", func(t *testing.T) {
		recs := recommend(pred(2, 0.1, 0.1, 0.8), nil)
		assert.Equal(t, "MODERATE-HIGH RISK - Drive defensively", recs[0])
	})

	t.Run("minor baseline gets distraction filler", func(t *testing.T) {
		recs := recommend(pred(1, 0.05, 0.9, 0.05), nil)
		assert.Equal(t, []string{
			"LOWER RISK - Remain vigilant",
			"Obey all traffic signals and speed limits",
			"Avoid all distractions while driving",
		}, recs)
	})

	t.Run("capped at six", func(t *testing.T) {
		factors := []string{
			"Heavy rain (reduced visibility and traction)",
			"Night time (reduced visibility, driver fatigue)",
			"Rush hour (high traffic volume, stress)",
			"Friday evening (end of work week, driver fatigue)",
			"High traffic congestion (stop-and-go, rear-end risk)",
			"Very high accident history (100 accidents within 10km)",
		}
		recs := recommend(pred(0, 0.8, 0.1, 0.1), factors)
		assert.Len(t, recs, 6)
	})

	t.Run("factor advice matches categories", func(t *testing.T) {
		recs := recommend(pred(1, 0.05, 0.9, 0.05), []string{"Light rain (wet conditions)"})
		assert.Contains(t, recs, "Reduce speed in wet conditions, avoid sudden braking")
	})
}

package risk

import (
	"strings"

	"roadrisk/internal/model"
)

const maxRecommendations = 6

// factorAdvice maps factor text to one piece of advice. First matching
// keyword per row wins; each row fires at most once.
var factorAdvice = []struct {
	keywords []string
	advice   string
}{
	{[]string{"rain", "wet"}, "Reduce speed in wet conditions, avoid sudden braking"},
	{[]string{"night"}, "Use headlights, avoid sudden lane changes"},
	{[]string{"rush hour"}, "Allow extra travel time, stay patient"},
	{[]string{"friday", "weekend", "saturday", "sunday"}, "Watch for increased recreational traffic"},
	{[]string{"congestion", "traffic"}, "Avoid aggressive driving, maintain safe distance"},
	{[]string{"accident history"}, "Known accident-prone area - be extra vigilant"},
}

// recommend builds driver-facing advice from the predicted severity,
// prediction uncertainty, and the reported risk factors. Capped at six
// entries, severity guidance first.
func recommend(pred model.Prediction, factors []string) []string {
	recs := make([]string, 0, maxRecommendations)

	switch pred.Label {
	case "fatal":
		recs = append(recs,
			"HIGH RISK - Exercise extreme caution",
			"Reduce speed significantly and increase following distance",
			"Stay highly alert for sudden hazards",
		)
	case "serious_injury":
		recs = append(recs,
			"MODERATE-HIGH RISK - Drive defensively",
			"Maintain safe following distance",
			"Watch carefully for pedestrians and vehicles",
		)
	default:
		recs = append(recs,
			"LOWER RISK - Remain vigilant",
			"Obey all traffic signals and speed limits",
		)
	}

	if probSpread(pred.Probs) < 0.2 {
		recs = append(recs, "Conditions are unpredictable - exercise extra caution")
	}

	joined := strings.ToLower(strings.Join(factors, " | "))
	for _, fa := range factorAdvice {
		for _, kw := range fa.keywords {
			if strings.Contains(joined, kw) {
				recs = append(recs, fa.advice)
				break
			}
		}
	}

	if len(recs) < maxRecommendations {
		recs = append(recs, "Avoid all distractions while driving")
	}
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}

func probSpread(probs []float64) float64 {
	if len(probs) == 0 {
		return 0
	}
	min, max := probs[0], probs[0]
	for _, p := range probs[1:] {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}
	return max - min
}

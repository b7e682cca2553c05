package api

import (
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// Live traffic and road-condition feeds are not wired up yet, so these
// endpoints synthesize plausible values shaped like the real providers.
// TODO: replace with the Longdo traffic feed once API access is sorted.

func parseLatLon(r *http.Request) (float64, float64, error) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid lat")
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid lon")
	}
	return lat, lon, nil
}

func isRushHourNow(t time.Time) bool {
	h := t.Hour()
	return (h >= 7 && h <= 9) || (h >= 17 && h <= 19)
}

func (s *Server) handleTrafficDensity(w http.ResponseWriter, r *http.Request) {
	if _, _, err := parseLatLon(r); err != nil {
		s.jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	density := 0.4
	if isRushHourNow(now) {
		density += 0.3
	}
	density += rand.Float64() * 0.2
	if density > 1 {
		density = 1
	}
	speed := 60 * (1 - density*0.7)

	congestion := "light"
	if density > 0.7 {
		congestion = "heavy"
	} else if density > 0.5 {
		congestion = "moderate"
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"density":          math.Round(density*100) / 100,
		"average_speed":    math.Round(speed),
		"congestion_level": congestion,
		"timestamp":        now.Format(time.RFC3339),
	})
}

func (s *Server) handleTrafficIndex(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	index := 3.0
	if isRushHourNow(now) {
		index += 3
	}
	index += rand.Float64() * 2
	if index > 10 {
		index = 10
	}

	status := "clear"
	switch {
	case index >= 7:
		status = "congested"
	case index >= 5:
		status = "busy"
	case index >= 3:
		status = "moderate"
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"current":   math.Round(index*10) / 10,
		"status":    status,
		"timestamp": now.Format(time.RFC3339),
	})
}

func (s *Server) handleRoadCondition(w http.ResponseWriter, r *http.Request) {
	if _, _, err := parseLatLon(r); err != nil {
		s.jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	qualities := []string{"excellent", "good", "fair", "poor"}
	lighting := "poor"
	if rand.Float64() > 0.4 {
		lighting = "good"
	}
	speedLimits := []int{60, 80, 90, 100, 120}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"surface_type":     "asphalt",
		"quality":          qualities[rand.Intn(len(qualities))],
		"lane_count":       2 + rand.Intn(3),
		"speed_limit":      speedLimits[rand.Intn(len(speedLimits))],
		"has_shoulder":     rand.Float64() > 0.3,
		"lighting":         lighting,
		"last_maintenance": time.Now().AddDate(0, 0, -1-rand.Intn(365)).Format(time.RFC3339),
	})
}

func (s *Server) handleRoadHazards(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := parseLatLon(r)
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	hazardTypes := []string{"pothole", "debris", "construction", "flooding", "animal_crossing", "poor_visibility"}
	severities := []string{"low", "medium", "high"}

	count := rand.Intn(4)
	hazards := make([]map[string]any, 0, count)
	for i := 0; i < count; i++ {
		hazards = append(hazards, map[string]any{
			"id":          fmt.Sprintf("hazard_%d", i),
			"type":        hazardTypes[rand.Intn(len(hazardTypes))],
			"lat":         lat + (rand.Float64()-0.5)*0.01,
			"lon":         lon + (rand.Float64()-0.5)*0.01,
			"severity":    severities[rand.Intn(len(severities))],
			"reported_at": time.Now().Add(-time.Duration(1+rand.Intn(24)) * time.Hour).Format(time.RFC3339),
		})
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"hazards": hazards,
		"count":   len(hazards),
	})
}

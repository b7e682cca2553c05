package api

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"roadrisk/internal/dashboard"
	"roadrisk/internal/feature"
	"roadrisk/internal/hotspot"
	"roadrisk/internal/metrics"
	"roadrisk/internal/risk"
	"roadrisk/internal/store"
)

// PredictRequest is the single-point prediction payload. Optional
// fields default to typical Thai driving conditions when omitted.
type PredictRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Hour      int     `json:"hour"`
	DayOfWeek int     `json:"day_of_week"` // 0 = Monday .. 6 = Sunday
	Month     int     `json:"month"`

	Temperature      *float64 `json:"temperature,omitempty"`
	Rainfall         *float64 `json:"rainfall,omitempty"`
	WeatherCondition *string  `json:"weather_condition,omitempty"`
	Humidity         *float64 `json:"humidity,omitempty"`

	TrafficDensity  *float64 `json:"traffic_density,omitempty"`
	AverageSpeed    *float64 `json:"average_speed,omitempty"`
	CongestionLevel *string  `json:"congestion_level,omitempty"`

	RoadType       *string `json:"road_type,omitempty"`
	NumLanes       *int    `json:"num_lanes,omitempty"`
	HasStreetLight *bool   `json:"has_street_light,omitempty"`

	NearbyEventsCount *int  `json:"nearby_events_count,omitempty"`
	IsWeekend         *bool `json:"is_weekend,omitempty"`
	IsRushHour        *bool `json:"is_rush_hour,omitempty"`

	VehicleType *string `json:"vehicle_type,omitempty"`
}

// PredictResponse mirrors the frontend's expected prediction shape.
type PredictResponse struct {
	Prediction      string             `json:"prediction"`
	Severity        string             `json:"severity"`
	Probabilities   map[string]float64 `json:"probabilities"`
	RiskScore       int                `json:"risk_score"`
	RiskLevel       risk.Level         `json:"risk_level"`
	Confidence      float64            `json:"confidence"`
	RiskFactors     []string           `json:"risk_factors"`
	Recommendations []string           `json:"recommendations"`
	AssessmentID    string             `json:"assessment_id"`
	NearbyAccidents int                `json:"nearby_accidents"`
}

// toContext maps the request onto a defaulted feature context.
func (req *PredictRequest) toContext() feature.Context {
	c := feature.Defaults()
	c.Latitude = req.Latitude
	c.Longitude = req.Longitude
	c.Hour = req.Hour
	c.DayOfWeek = req.DayOfWeek
	c.Month = req.Month

	if req.Temperature != nil {
		c.Temperature = *req.Temperature
	}
	if req.Rainfall != nil {
		c.Rainfall = *req.Rainfall
	}
	if req.WeatherCondition != nil {
		c.WeatherCondition = *req.WeatherCondition
	}
	if req.Humidity != nil {
		c.Humidity = *req.Humidity
	}
	if req.TrafficDensity != nil {
		c.TrafficDensity = *req.TrafficDensity
	}
	if req.AverageSpeed != nil {
		c.AverageSpeed = *req.AverageSpeed
	}
	if req.CongestionLevel != nil {
		c.CongestionLevel = *req.CongestionLevel
	}
	if req.RoadType != nil {
		c.RoadType = *req.RoadType
	}
	if req.NumLanes != nil {
		c.NumLanes = *req.NumLanes
	}
	if req.HasStreetLight != nil {
		c.HasStreetLight = *req.HasStreetLight
	}
	if req.NearbyEventsCount != nil {
		c.NearbyEventsCount = *req.NearbyEventsCount
	}
	if req.IsWeekend != nil {
		c.IsWeekend = *req.IsWeekend
	}
	if req.IsRushHour != nil {
		c.IsRushHour = *req.IsRushHour
	}
	if req.VehicleType != nil {
		c.VehicleType = *req.VehicleType
	}
	return c
}

func (req *PredictRequest) validate() error {
	if req.Hour < 0 || req.Hour > 23 {
		return fmt.Errorf("hour must be 0-23, got %d", req.Hour)
	}
	if req.DayOfWeek < 0 || req.DayOfWeek > 6 {
		return fmt.Errorf("day_of_week must be 0-6, got %d", req.DayOfWeek)
	}
	if req.Month < 1 || req.Month > 12 {
		return fmt.Errorf("month must be 1-12, got %d", req.Month)
	}
	return nil
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if err := req.validate(); err != nil {
		s.jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.predict(r, req)
	if err != nil {
		metrics.PredictionErrorsTotal.Inc()
		s.jsonError(w, http.StatusInternalServerError, fmt.Sprintf("prediction error: %v", err))
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// predict runs one feature-build, classify, calibrate cycle.
func (s *Server) predict(r *http.Request, req PredictRequest) (*PredictResponse, error) {
	c := req.toContext()

	// Prefer the caller-supplied density; fall back to a live count
	// when the store supports it.
	nearby := c.NearbyEventsCount
	if nearby == 0 && s.nearby != nil {
		if n, err := s.nearby.CountNearby(r.Context(), c.Latitude, c.Longitude); err == nil {
			nearby = n
		}
	}

	pred, err := s.classifier.PredictOne(s.builder.Vector(c))
	if err != nil {
		return nil, err
	}
	metrics.PredictionsTotal.Inc()

	a := s.calibrator.Assess(pred, risk.InputFromContext(c, nearby))
	s.log.Info().
		Float64("lat", c.Latitude).
		Float64("lon", c.Longitude).
		Str("severity", a.Severity).
		Int("risk_score", a.Score).
		Float64("confidence", a.Confidence).
		Int("nearby", nearby).
		Msg("prediction")

	return &PredictResponse{
		Prediction:      a.Severity,
		Severity:        a.Severity,
		Probabilities:   a.Probabilities,
		RiskScore:       a.Score,
		RiskLevel:       a.Level,
		Confidence:      a.Confidence,
		RiskFactors:     a.Factors,
		Recommendations: a.Recommendations,
		AssessmentID:    a.ID,
		NearbyAccidents: nearby,
	}, nil
}

// RouteRequest describes a start-to-destination trip.
type RouteRequest struct {
	FromLat       float64 `json:"from_lat"`
	FromLng       float64 `json:"from_lng"`
	ToLat         float64 `json:"to_lat"`
	ToLng         float64 `json:"to_lng"`
	DepartureTime string  `json:"departure_time"` // RFC 3339
	VehicleType   string  `json:"vehicle_type,omitempty"`
}

// RoutePointRisk is the per-waypoint slice of a route response.
type RoutePointRisk struct {
	Prediction string     `json:"prediction"`
	RiskScore  int        `json:"risk_score"`
	RiskLevel  risk.Level `json:"risk_level"`
}

// RouteResponse aggregates risk along start, midpoint and destination.
type RouteResponse struct {
	RouteRiskScore int            `json:"route_risk_score"`
	Start          RoutePointRisk `json:"start"`
	Middle         RoutePointRisk `json:"middle"`
	End            RoutePointRisk `json:"end"`
}

func (s *Server) handlePredictRoute(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)

	var req RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	dt, err := time.Parse(time.RFC3339, req.DepartureTime)
	if err != nil {
		// Accept a bare local timestamp too.
		dt, err = time.Parse("2006-01-02T15:04:05", req.DepartureTime)
		if err != nil {
			s.jsonError(w, http.StatusBadRequest, fmt.Sprintf("invalid departure_time: %v", err))
			return
		}
	}
	vehicle := req.VehicleType
	if vehicle == "" {
		vehicle = "car"
	}

	// Three samples along the trip: departure, midpoint thirty minutes
	// in, destination one hour in.
	points := []struct {
		lat, lng float64
		at       time.Time
	}{
		{req.FromLat, req.FromLng, dt},
		{(req.FromLat + req.ToLat) / 2, (req.FromLng + req.ToLng) / 2, dt.Add(30 * time.Minute)},
		{req.ToLat, req.ToLng, dt.Add(time.Hour)},
	}

	results := make([]RoutePointRisk, len(points))
	sum := 0
	for i, p := range points {
		preq := PredictRequest{
			Latitude:    p.lat,
			Longitude:   p.lng,
			Hour:        p.at.Hour(),
			DayOfWeek:   mondayIndexed(p.at.Weekday()),
			Month:       int(p.at.Month()),
			VehicleType: &vehicle,
		}
		resp, err := s.predict(r, preq)
		if err != nil {
			metrics.PredictionErrorsTotal.Inc()
			s.jsonError(w, http.StatusInternalServerError, fmt.Sprintf("route prediction error: %v", err))
			return
		}
		results[i] = RoutePointRisk{
			Prediction: resp.Prediction,
			RiskScore:  resp.RiskScore,
			RiskLevel:  resp.RiskLevel,
		}
		sum += resp.RiskScore
	}

	s.jsonResponse(w, http.StatusOK, &RouteResponse{
		RouteRiskScore: int(math.Round(float64(sum) / float64(len(points)))),
		Start:          results[0],
		Middle:         results[1],
		End:            results[2],
	})
}

func mondayIndexed(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func (s *Server) handlePredictHotspots(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)

	cond := hotspot.Conditions{
		Hour:           18,
		DayOfWeek:      4,
		Month:          1,
		TrafficDensity: 0.5,
		MinProbability: 0.01,
	}
	if err := json.NewDecoder(r.Body).Decode(&cond); err != nil && err != io.EOF {
		s.jsonError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	ranking, err := s.ranker.Rank(r.Context(), cond)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, fmt.Sprintf("hotspot ranking error: %v", err))
		return
	}
	s.jsonResponse(w, http.StatusOK, ranking)
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	q := dashboard.Query{
		DateRange:    r.URL.Query().Get("date_range"),
		Province:     r.URL.Query().Get("province"),
		CasualtyType: r.URL.Query().Get("casualty_type"),
	}
	// vehicle_type, weather and accident_cause are accepted but applied
	// client-side against the all_events payload.

	stats, err := s.dashboards.Stats(r.Context(), q)
	if err != nil {
		s.log.Error().Err(err).Msg("dashboard stats failed")
		s.jsonResponse(w, http.StatusInternalServerError, map[string]string{
			"error":   err.Error(),
			"message": "Failed to fetch dashboard statistics",
		})
		return
	}
	s.jsonResponse(w, http.StatusOK, stats)
}

func (s *Server) handleFilterValues(w http.ResponseWriter, r *http.Request) {
	values, err := s.dashboards.FilterOptions(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("filter values failed")
		s.jsonError(w, http.StatusInternalServerError, fmt.Sprintf("failed to fetch filter values: %v", err))
		return
	}
	s.jsonResponse(w, http.StatusOK, values)
}

func (s *Server) handleAvailableYears(w http.ResponseWriter, r *http.Request) {
	years, err := s.dashboards.Years(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("available years failed")
		s.jsonError(w, http.StatusInternalServerError, fmt.Sprintf("failed to fetch available years: %v", err))
		return
	}
	s.jsonResponse(w, http.StatusOK, years)
}

// EventsResponse wraps a page of raw accident events.
type EventsResponse struct {
	Events  []store.AccidentRecord `json:"events"`
	Total   int                    `json:"total"`
	Filters map[string]any         `json:"filters"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var f store.Filters
	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			s.jsonError(w, http.StatusBadRequest, fmt.Sprintf("invalid start_date: %v", err))
			return
		}
		f.From = t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			s.jsonError(w, http.StatusBadRequest, fmt.Sprintf("invalid end_date: %v", err))
			return
		}
		f.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	if v := q.Get("province"); v != "" && v != "all" {
		f.Province = v
	}

	limit := intParam(q.Get("limit"), 5000)
	if limit > 10000 {
		limit = 10000
	}
	offset := intParam(q.Get("offset"), 0)

	events, total, err := s.records.GetEvents(r.Context(), f, limit, offset)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, fmt.Sprintf("failed to fetch events: %v", err))
		return
	}
	if events == nil {
		events = []store.AccidentRecord{}
	}
	s.jsonResponse(w, http.StatusOK, &EventsResponse{
		Events: events,
		Total:  total,
		Filters: map[string]any{
			"start_date": q.Get("start_date"),
			"end_date":   q.Get("end_date"),
			"province":   q.Get("province"),
			"limit":      limit,
			"offset":     offset,
		},
	})
}

func (s *Server) handleModelsInfo(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"num_features": s.classifier.NumFeatures(),
		"classes":      s.classifier.Classes(),
		"models": map[string]string{
			"severity": "Gradient Boosted Trees",
		},
	})
}

func intParam(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadrisk/internal/dashboard"
	"roadrisk/internal/feature"
	"roadrisk/internal/hotspot"
	"roadrisk/internal/metrics"
	"roadrisk/internal/model"
	"roadrisk/internal/risk"
	"roadrisk/internal/store"
)

// fakeRecords is an in-memory stand-in for the ClickHouse store.
type fakeRecords struct {
	events  []store.AccidentRecord
	nearby  int
	pingErr error
	err     error
}

func (f *fakeRecords) GetEvents(_ context.Context, _ store.Filters, limit, offset int) ([]store.AccidentRecord, int, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	total := len(f.events)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return f.events[offset:end], total, nil
}

func (f *fakeRecords) Ping(context.Context) error { return f.pingErr }
func (f *fakeRecords) Close() error               { return nil }

func (f *fakeRecords) CountNearby(context.Context, float64, float64) (int, error) {
	return f.nearby, nil
}

type stubGeocoder struct{}

func (stubGeocoder) DisplayName(_ context.Context, lat, lon float64, _ int) string {
	return fmt.Sprintf("road at %.2f,%.2f", lat, lon)
}

// testClassifier builds a minimal artifact whose every prediction is
// "fatal": one leaf tree per class, only the fatal tree scoring.
func testClassifier(t *testing.T, numFeatures int) *model.Classifier {
	t.Helper()
	leaf := func(value float64) string {
		return fmt.Sprintf(`{"split_index":[0],"threshold":[0],"left":[-1],"right":[-1],"value":[%g]}`, value)
	}
	modelJSON := fmt.Sprintf(
		`{"num_features":%d,"num_classes":3,"base_score":0.5,"trees":[%s,%s,%s]}`,
		numFeatures, leaf(2.0), leaf(0), leaf(0),
	)
	encoderJSON := `{"classes":["fatal","minor_injury","serious_injury"]}`
	c, err := model.LoadBytes([]byte(modelJSON), []byte(encoderJSON))
	require.NoError(t, err)
	return c
}

func newTestServer(t *testing.T, records *fakeRecords, locations []hotspot.Location) *Server {
	t.Helper()
	log := zerolog.Nop()
	builder := feature.NewBuilder()
	classifier := testClassifier(t, builder.Len())
	calibrator := risk.NewCalibrator(classifier.Classes())
	ranker := hotspot.NewRanker(builder, classifier, stubGeocoder{}, locations, log)
	dashboards := dashboard.NewService(records, dashboard.NewCache(), log)
	return NewServer(nil, classifier, builder, calibrator, ranker, dashboards, records, records, log)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeRecords{}, nil)
	rec, body := doJSON(t, srv.Router(), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "online", body["status"])
	assert.Equal(t, "Accident Risk Prediction API", body["service"])
}

func TestReady(t *testing.T) {
	records := &fakeRecords{}
	srv := newTestServer(t, records, nil)

	rec, body := doJSON(t, srv.Router(), http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])

	records.pingErr = errors.New("dial tcp: refused")
	rec, _ = doJSON(t, srv.Router(), http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPredict(t *testing.T) {
	records := &fakeRecords{nearby: 7}
	srv := newTestServer(t, records, nil)

	rec, body := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/predict", map[string]any{
		"latitude":    13.7563,
		"longitude":   100.5018,
		"hour":        12,
		"day_of_week": 0,
		"month":       6,
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "fatal", body["prediction"])
	assert.Equal(t, "fatal", body["severity"])
	assert.NotEmpty(t, body["assessment_id"])
	assert.NotEmpty(t, body["risk_level"])
	assert.EqualValues(t, 7, body["nearby_accidents"])

	probs, ok := body["probabilities"].(map[string]any)
	require.True(t, ok)
	require.Len(t, probs, 3)
	sum := 0.0
	for _, v := range probs {
		sum += v.(float64)
	}
	assert.InDelta(t, 1.0, sum, 1e-6)

	score := body["risk_score"].(float64)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 100.0)
	assert.NotEmpty(t, body["recommendations"])
}

func TestPredictValidation(t *testing.T) {
	srv := newTestServer(t, &fakeRecords{}, nil)

	cases := []map[string]any{
		{"hour": 24, "day_of_week": 0, "month": 1},
		{"hour": 0, "day_of_week": 7, "month": 1},
		{"hour": 0, "day_of_week": 0, "month": 13},
	}
	for _, c := range cases {
		rec, body := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/predict", c)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.NotEmpty(t, body["error"])
	}
}

func TestPredictRejectsMalformedJSON(t *testing.T) {
	srv := newTestServer(t, &fakeRecords{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredictRoute(t *testing.T) {
	srv := newTestServer(t, &fakeRecords{}, nil)

	rec, body := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/predict/route", map[string]any{
		"from_lat":       13.7563,
		"from_lng":       100.5018,
		"to_lat":         14.9799,
		"to_lng":         102.0978,
		"departure_time": "2025-06-02T08:00:00",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, key := range []string{"start", "middle", "end"} {
		point, ok := body[key].(map[string]any)
		require.True(t, ok, key)
		assert.Equal(t, "fatal", point["prediction"])
	}
	assert.Contains(t, body, "route_risk_score")
}

func TestPredictRouteRejectsBadDeparture(t *testing.T) {
	srv := newTestServer(t, &fakeRecords{}, nil)
	rec, body := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/predict/route", map[string]any{
		"from_lat":       13.0,
		"from_lng":       100.0,
		"to_lat":         14.0,
		"to_lng":         101.0,
		"departure_time": "next tuesday",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "departure_time")
}

func TestPredictHotspotsDefaults(t *testing.T) {
	locs := []hotspot.Location{
		{Latitude: 13.75, Longitude: 100.50, AccidentCount: 120, PrimarySeverity: "fatal", Province: "Bangkok"},
		{Latitude: 14.97, Longitude: 102.09, AccidentCount: 60, PrimarySeverity: "serious_injury", Province: "Nakhon Ratchasima"},
	}
	srv := newTestServer(t, &fakeRecords{}, locs)

	// Empty body falls back to the documented default conditions.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict/hotspots", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ranking hotspot.Ranking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ranking))

	assert.Equal(t, 18, ranking.Conditions.Hour)
	assert.Equal(t, 4, ranking.Conditions.DayOfWeek)
	assert.Equal(t, 1, ranking.Conditions.Month)
	assert.Equal(t, 2, ranking.TotalChecked)
	require.NotEmpty(t, ranking.Hotspots)
	assert.Equal(t, "Bangkok", ranking.Hotspots[0].Province)
	assert.Contains(t, ranking.Hotspots[0].Name, "road at")
}

func TestDashboardStats(t *testing.T) {
	records := &fakeRecords{events: []store.AccidentRecord{
		{Province: "Bangkok", Fatalities: 1},
		{Province: "Bangkok", MinorInjured: 2},
	}}
	srv := newTestServer(t, records, nil)

	rec, body := doJSON(t, srv.Router(), http.MethodGet, "/api/v1/dashboard/stats?province=Bangkok", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary, ok := body["summary"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, summary["total_accidents"])
	assert.EqualValues(t, 1, summary["fatalities"])
}

func TestDashboardStatsError(t *testing.T) {
	records := &fakeRecords{err: errors.New("clickhouse down")}
	srv := newTestServer(t, records, nil)

	rec, body := doJSON(t, srv.Router(), http.MethodGet, "/api/v1/dashboard/stats", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to fetch dashboard statistics", body["message"])
	assert.NotEmpty(t, body["error"])
}

func TestEvents(t *testing.T) {
	records := &fakeRecords{events: []store.AccidentRecord{
		{Province: "Bangkok"}, {Province: "Chonburi"}, {Province: "Phuket"},
	}}
	srv := newTestServer(t, records, nil)

	rec, body := doJSON(t, srv.Router(), http.MethodGet, "/api/v1/events?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events, ok := body["events"].([]any)
	require.True(t, ok)
	assert.Len(t, events, 2)
	assert.EqualValues(t, 3, body["total"])

	filters, ok := body["filters"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, filters["limit"])
}

func TestEventsRejectsBadDates(t *testing.T) {
	srv := newTestServer(t, &fakeRecords{}, nil)
	rec, body := doJSON(t, srv.Router(), http.MethodGet, "/api/v1/events?start_date=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "start_date")
}

func TestModelsInfo(t *testing.T) {
	srv := newTestServer(t, &fakeRecords{}, nil)
	rec, body := doJSON(t, srv.Router(), http.MethodGet, "/api/v1/models/info", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, feature.NewBuilder().Len(), body["num_features"])
	classes, ok := body["classes"].([]any)
	require.True(t, ok)
	assert.Len(t, classes, 3)
}

func TestDashboardFilterValues(t *testing.T) {
	records := &fakeRecords{events: []store.AccidentRecord{
		{DateTime: time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC), Vehicle: "motorcycle", Weather: "rain", PresumedCause: "speeding"},
		{DateTime: time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), Vehicle: "car", Weather: "rain"},
	}}
	srv := newTestServer(t, records, nil)

	rec, body := doJSON(t, srv.Router(), http.MethodGet, "/api/v1/dashboard/filter-values", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, body["total_events"])

	weathers, ok := body["weather_conditions"].([]any)
	require.True(t, ok)
	require.Len(t, weathers, 1)
	first := weathers[0].(map[string]any)
	assert.Equal(t, "rain", first["value"])
	assert.EqualValues(t, 2, first["count"])
}

func TestEventsAvailableYears(t *testing.T) {
	records := &fakeRecords{events: []store.AccidentRecord{
		{DateTime: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)},
		{DateTime: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{DateTime: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)},
	}}
	srv := newTestServer(t, records, nil)

	rec, body := doJSON(t, srv.Router(), http.MethodGet, "/api/v1/events/available-years", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, body["total_years"])

	years, ok := body["years"].([]any)
	require.True(t, ok)
	require.Len(t, years, 2)
	newest := years[0].(map[string]any)
	assert.EqualValues(t, 2024, newest["year"])
	assert.EqualValues(t, 2, newest["count"])
}

func TestRequestMetricsUseRoutePattern(t *testing.T) {
	srv := newTestServer(t, &fakeRecords{}, nil)

	matched := metrics.RequestsTotal.WithLabelValues("GET", "/api/v1/models/info", "200")
	before := testutil.ToFloat64(matched)
	rec, _ := doJSON(t, srv.Router(), http.MethodGet, "/api/v1/models/info", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(matched))

	// Unknown paths collapse into one label instead of minting a new
	// series per probed path.
	unmatched := metrics.RequestsTotal.WithLabelValues("GET", "unmatched", "404")
	before = testutil.ToFloat64(unmatched)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/session/48151623", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(unmatched))
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &fakeRecords{}, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/predict", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

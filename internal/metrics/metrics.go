// Package metrics exposes prometheus collectors for the risk engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roadrisk_requests_total",
		Help: "Total HTTP requests by route",
	}, []string{"method", "route", "status"})
	RequestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "roadrisk_request_duration_ms",
		Help:    "Request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	})
	PredictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roadrisk_predictions_total",
		Help: "Total single-context severity predictions",
	})
	PredictionErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roadrisk_prediction_errors_total",
		Help: "Total classification failures surfaced to callers",
	})
	HotspotRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roadrisk_hotspot_runs_total",
		Help: "Total hotspot ranking runs",
	})
	HotspotDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "roadrisk_hotspot_duration_ms",
		Help:    "Hotspot ranking duration in milliseconds",
		Buckets: []float64{10, 50, 100, 500, 1000, 5000, 15000},
	})
	UnmappedFeaturesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roadrisk_unmapped_features_total",
		Help: "Feature names resolved to the zero default (data-quality signal)",
	})
	GeocodeRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roadrisk_geocode_requests_total",
		Help: "Total reverse-geocode provider calls",
	})
	GeocodeFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roadrisk_geocode_failures_total",
		Help: "Reverse-geocode calls that fell back to a synthetic name",
	})
	GeocodeCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roadrisk_geocode_cache_hits_total",
		Help: "Reverse-geocode lookups served from the memo cache",
	})
	DashboardCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roadrisk_dashboard_cache_hits_total",
		Help: "Dashboard stats served from the TTL cache",
	})
	DashboardCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roadrisk_dashboard_cache_misses_total",
		Help: "Dashboard stats recomputed on cache miss or expiry",
	})
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDurationMs,
		PredictionsTotal,
		PredictionErrorsTotal,
		HotspotRunsTotal,
		HotspotDurationMs,
		UnmappedFeaturesTotal,
		GeocodeRequestsTotal,
		GeocodeFailuresTotal,
		GeocodeCacheHitsTotal,
		DashboardCacheHitsTotal,
		DashboardCacheMissesTotal,
	)
}

// Handler returns the prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

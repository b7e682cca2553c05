// Package api provides the HTTP server for the risk scoring service.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"roadrisk/internal/dashboard"
	"roadrisk/internal/feature"
	"roadrisk/internal/hotspot"
	"roadrisk/internal/metrics"
	"roadrisk/internal/model"
	"roadrisk/internal/risk"
	"roadrisk/internal/store"
)

const apiVersion = "1.0.0"

// NearbyCounter counts historical accidents around a point. Optional:
// when absent the per-request nearby count is taken from the request
// body alone.
type NearbyCounter interface {
	CountNearby(ctx context.Context, lat, lon float64) (int, error)
}

// Config holds server configuration.
type Config struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestSize int64
	CORSOrigins    []string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		MaxRequestSize: 10 * 1024 * 1024, // 10MB
		CORSOrigins:    []string{"*"},
	}
}

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	config     *Config
	log        zerolog.Logger

	classifier *model.Classifier
	builder    *feature.Builder
	calibrator *risk.Calibrator
	ranker     *hotspot.Ranker
	dashboards *dashboard.Service
	records    store.RecordStore
	nearby     NearbyCounter
}

// NewServer wires the service components into an HTTP server.
func NewServer(
	cfg *Config,
	classifier *model.Classifier,
	builder *feature.Builder,
	calibrator *risk.Calibrator,
	ranker *hotspot.Ranker,
	dashboards *dashboard.Service,
	records store.RecordStore,
	nearby NearbyCounter,
	log zerolog.Logger,
) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Server{
		config:     cfg,
		log:        log.With().Str("component", "api").Logger(),
		classifier: classifier,
		builder:    builder,
		calibrator: calibrator,
		ranker:     ranker,
		dashboards: dashboards,
		records:    records,
		nearby:     nearby,
	}
}

// Router builds the route tree. Exposed so tests can drive handlers
// without binding a port.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(s.observeMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/predict", s.handlePredict)
		r.Post("/predict/route", s.handlePredictRoute)
		r.Post("/predict/hotspots", s.handlePredictHotspots)
		r.Get("/dashboard/stats", s.handleDashboardStats)
		r.Get("/dashboard/filter-values", s.handleFilterValues)
		r.Get("/events", s.handleEvents)
		r.Get("/events/available-years", s.handleAvailableYears)
		r.Get("/models/info", s.handleModelsInfo)
		r.Get("/traffic/density", s.handleTrafficDensity)
		r.Get("/traffic/index", s.handleTrafficIndex)
		r.Get("/road/condition", s.handleRoadCondition)
		r.Get("/road/hazards", s.handleRoadHazards)
	})
	return r
}

// Start starts the HTTP server and blocks until it exits.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Router(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.log.Info().Int("port", s.config.Port).Msg("api server starting")
	return s.httpServer.ListenAndServe()
}

// StartWithGracefulShutdown runs the server until SIGINT/SIGTERM, then
// drains in-flight requests.
func (s *Server) StartWithGracefulShutdown() error {
	errChan := make(chan error, 1)
	go func() {
		if err := s.Start(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-quit:
		s.log.Info().Msg("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
}

func (s *Server) observeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		// Label with the route pattern, not the raw path, so
		// arbitrary request paths cannot grow the series count.
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		if route == "" {
			route = "unmatched"
		}
		metrics.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		metrics.RequestDurationMs.Observe(float64(elapsed.Milliseconds()))
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		allowed := false
		for _, o := range s.config.CORSOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}
		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "online",
		"service": "Accident Risk Prediction API",
		"version": apiVersion,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if s.records != nil {
		if err := s.records.Ping(ctx); err != nil {
			s.jsonError(w, http.StatusServiceUnavailable, "database not ready")
			return
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, msg string) {
	s.jsonResponse(w, status, map[string]string{"error": msg})
}

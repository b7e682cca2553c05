// Package main runs the accident risk prediction API server.
package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"roadrisk/api"
	"roadrisk/internal/dashboard"
	"roadrisk/internal/feature"
	"roadrisk/internal/geocode"
	"roadrisk/internal/hotspot"
	"roadrisk/internal/model"
	"roadrisk/internal/risk"
	"roadrisk/internal/store"
	"roadrisk/pkg/platform"
)

func main() {
	platform.LoadDotEnv()
	log := platform.InitLogger("roadrisk-api")

	modelPath := platform.GetEnv("MODEL_PATH", "models/severity_model.json")
	encoderPath := platform.GetEnv("ENCODER_PATH", "models/label_encoder.json")

	classifier, err := model.Load(modelPath, encoderPath)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot start without a model")
	}

	builder := feature.NewBuilder()
	if builder.Len() != classifier.NumFeatures() {
		log.Fatal().
			Int("builder", builder.Len()).
			Int("model", classifier.NumFeatures()).
			Msg("feature count mismatch between builder and model")
	}
	log.Info().
		Int("features", classifier.NumFeatures()).
		Strs("classes", classifier.Classes()).
		Msg("model loaded")

	calibrator := risk.NewCalibrator(classifier.Classes())

	// Accident corpus lives in ClickHouse.
	chCfg := &store.Config{
		Host:     platform.GetEnv("CLICKHOUSE_HOST", "localhost"),
		Port:     platform.GetEnvInt("CLICKHOUSE_PORT", 9000),
		Database: platform.GetEnv("CLICKHOUSE_DATABASE", "roadrisk"),
		Username: platform.GetEnv("CLICKHOUSE_USERNAME", "default"),
		Password: platform.GetEnv("CLICKHOUSE_PASSWORD", ""),
		Debug:    platform.GetEnvBool("CLICKHOUSE_DEBUG", false),
	}
	records, err := store.NewClickHouseStore(chCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open ClickHouse")
	}
	defer records.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := records.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("ClickHouse not reachable at startup, continuing")
	}
	cancel()

	// Location aggregates come from Postgres when a DSN is configured,
	// otherwise from a local JSON export.
	var locations []store.Location
	if dsn := platform.GetEnv("LOCATIONS_DSN", ""); dsn != "" {
		db, err := store.OpenLocationDB(dsn)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open location database")
		}
		defer db.Close()
		locations, err = db.TopLocations(platform.GetEnvInt("LOCATIONS_LIMIT", 50000))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load locations")
		}
	} else {
		path := platform.GetEnv("LOCATIONS_FILE", "data/accident_locations.json")
		locations, err = store.LoadLocationsFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("no location aggregates, hotspot ranking will be empty")
		}
	}
	log.Info().Int("locations", len(locations)).Msg("location aggregates loaded")

	var rdb *redis.Client
	if addr := platform.GetEnv("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: platform.GetEnv("REDIS_PASSWORD", ""),
			DB:       platform.GetEnvInt("REDIS_DB", 0),
		})
	}
	geocoder := geocode.NewClient(rdb, log)

	ranker := hotspot.NewRanker(builder, classifier, geocoder, toHotspotLocations(locations), log)

	cache := dashboard.NewCache()
	dashboards := dashboard.NewService(records, cache, log)

	cfg := api.DefaultConfig()
	cfg.Port = platform.GetEnvInt("PORT", 8080)

	srv := api.NewServer(cfg, classifier, builder, calibrator, ranker, dashboards, records, records, log)
	if err := srv.StartWithGracefulShutdown(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func toHotspotLocations(locs []store.Location) []hotspot.Location {
	out := make([]hotspot.Location, len(locs))
	for i, l := range locs {
		out[i] = hotspot.Location{
			Latitude:        l.Latitude,
			Longitude:       l.Longitude,
			AccidentCount:   l.AccidentCount,
			PrimarySeverity: l.PrimarySeverity,
			Province:        l.Province,
			PeakHours:       l.PeakHours,
		}
	}
	return out
}

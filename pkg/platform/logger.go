// Package platform provides shared process-level plumbing: logging setup
// and environment-backed configuration helpers.
package platform

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the global zerolog logger for the given service.
// JSON output by default; human-readable console output when ENV=development.
func InitLogger(service string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := log.Logger
	if os.Getenv("ENV") == "development" {
		logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	logger = logger.With().Str("service", service).Logger()
	log.Logger = logger
	return logger
}

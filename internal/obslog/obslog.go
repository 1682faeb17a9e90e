// Package obslog builds the structured loggers shared by every entrypoint.
package obslog

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/outcomeops/analytics-ingest/internal/config"
)

// New returns a zerolog.Logger configured from cfg. Development environments
// get a human-readable console writer at debug level; everything else gets
// level-gated JSON suitable for CloudWatch ingestion.
func New(cfg *config.Config) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if cfg.IsDevelopment() {
		out := zerolog.ConsoleWriter{Out: os.Stderr}
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return zerolog.New(out).With().Timestamp().Logger()
	}
	zerolog.SetGlobalLevel(lvl)
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// Named returns a child logger tagged with the given component name, the
// way every gateway subsystem tags its own logger.
func Named(log zerolog.Logger, component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

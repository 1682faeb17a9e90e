//go:build !lambda

/*
Command journeytracker is the Journey Tracker's standalone HTTP server
entrypoint (§4.6): config -> logger -> store client -> router -> http.Server,
with graceful shutdown on SIGINT/SIGTERM, following the teacher gateway's
main.go wiring. Build with -tags lambda for the API-Gateway adapter instead.
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/outcomeops/analytics-ingest/internal/config"
	"github.com/outcomeops/analytics-ingest/internal/journey"
	"github.com/outcomeops/analytics-ingest/internal/journeyhttp"
	"github.com/outcomeops/analytics-ingest/internal/obslog"
	"github.com/outcomeops/analytics-ingest/internal/store"
)

func main() {
	cfg := config.Load()
	log := obslog.New(cfg)

	log.Info().Str("env", cfg.Env).Msg("journey tracker starting")

	if cfg.SessionsTable == "" {
		log.Warn().Msg("SESSIONS_TABLE not configured; /t and /t/batch will return 500 until it is set")
	}

	client, err := store.Default(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build event store client")
	}

	writer := journey.NewWriter(client, cfg.SessionsTable, log)
	handler := journeyhttp.NewHandler(cfg, writer, log)
	router := journeyhttp.NewRouter(handler)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("journey tracker listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("journey tracker stopped gracefully")
	}
}

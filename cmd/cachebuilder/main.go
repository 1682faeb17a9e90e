/*
Command cachebuilder is the Cache Builder Lambda entrypoint (§4.7): invoked
on an EventBridge schedule, it builds and writes the four cache rows for
every domain in DOMAIN_LIST.
*/
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/outcomeops/analytics-ingest/internal/cachebuilder"
	"github.com/outcomeops/analytics-ingest/internal/config"
	"github.com/outcomeops/analytics-ingest/internal/obslog"
	"github.com/outcomeops/analytics-ingest/internal/store"
)

func handleSchedule(ctx context.Context, event events.CloudWatchEvent) error {
	cfg := config.Load()
	log := obslog.New(cfg)

	if cfg.TableName == "" {
		log.Error().Msg("TABLE_NAME not configured")
		return nil
	}
	if len(cfg.DomainList) == 0 {
		log.Warn().Msg("no domains configured, nothing to build")
		return nil
	}

	client, err := store.Default(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to build event store client")
		return err
	}

	builder := cachebuilder.NewBuilder(client, cfg.TableName, log)
	now := time.Now().UTC()

	for _, domain := range cfg.DomainList {
		if err := builder.BuildAndWriteAll(ctx, domain, now); err != nil {
			log.Error().Err(err).Str("domain", domain).Msg("failed to build cache for domain")
			continue
		}
	}

	log.Info().Int("domains", len(cfg.DomainList)).Msg("cache build complete")
	return nil
}

func main() {
	lambda.Start(handleSchedule)
}

/*
Command logparser is the Log Parser Lambda entrypoint (§4.1-§4.5): it is
invoked once per delivered S3 log object and wires the blob reader, path
filter, event writer, and rollup writer into an ingest.Controller.
*/
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/outcomeops/analytics-ingest/internal/blobstore"
	"github.com/outcomeops/analytics-ingest/internal/config"
	"github.com/outcomeops/analytics-ingest/internal/eventwriter"
	"github.com/outcomeops/analytics-ingest/internal/ingest"
	"github.com/outcomeops/analytics-ingest/internal/obslog"
	"github.com/outcomeops/analytics-ingest/internal/pathfilter"
	"github.com/outcomeops/analytics-ingest/internal/rollup"
	"github.com/outcomeops/analytics-ingest/internal/store"
)

func handleS3Event(ctx context.Context, event events.S3Event) error {
	cfg := config.Load()
	log := obslog.New(cfg)

	reader, err := blobstore.Default(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to build blob reader")
		return err
	}

	client, err := store.Default(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to build event store client")
		return err
	}

	filter := pathfilter.New(cfg.ExcludedExtensions, cfg.ExcludedPaths)
	eventWriter := eventwriter.NewWriter(client, cfg.TableName, log)
	rollupWriter := rollup.NewWriter(client, cfg.TableName, log)
	controller := ingest.NewController(reader, filter, eventWriter, rollupWriter, log)

	for _, record := range event.Records {
		bucket := record.S3.Bucket.Name
		key := record.S3.Object.Key

		result, err := controller.ProcessObject(ctx, bucket, key)
		if err != nil {
			log.Error().Err(err).Str("bucket", bucket).Str("key", key).Msg("object processing failed, invocation will be redelivered")
			return err
		}
		log.Info().
			Str("bucket", bucket).
			Str("key", key).
			Str("domain", result.Domain).
			Int("processed", result.Processed).
			Int("written", result.Written).
			Int("rollup_failures", len(result.Failures)).
			Msg("log object processed")
	}

	return nil
}

func main() {
	lambda.Start(handleS3Event)
}

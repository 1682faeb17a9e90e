/*
Package ingest implements the Ingestion Controller of §4.3: for each
delivered log object it derives the canonical domain from the object key,
fetches and decodes the object, parses and filters each line, and hands the
kept events to the event writer and rollup writer.
*/
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/outcomeops/analytics-ingest/internal/logline"
	"github.com/outcomeops/analytics-ingest/internal/obslog"
	"github.com/outcomeops/analytics-ingest/internal/pathfilter"
	"github.com/outcomeops/analytics-ingest/internal/rollup"
)

// ObjectReader fetches and gzip-decodes a delivered log object.
type ObjectReader interface {
	FetchText(ctx context.Context, bucket, key string) (string, error)
}

// EventWriter batch-writes kept events to the Event Store.
type EventWriter interface {
	WriteAll(ctx context.Context, events []logline.Event) (int, error)
}

// RollupWriter issues Phase 2 atomic updates for an accumulator.
type RollupWriter interface {
	Flush(ctx context.Context, a *rollup.Accumulator) []rollup.FailedUpdate
}

// Controller orchestrates reader -> parser -> filter -> event writer ->
// rollup writer for one delivered object (§4.3).
type Controller struct {
	reader  ObjectReader
	filter  pathfilter.Filter
	events  EventWriter
	rollups RollupWriter
	logger  zerolog.Logger
}

// NewController builds a Controller.
func NewController(reader ObjectReader, filter pathfilter.Filter, events EventWriter, rollups RollupWriter, logger zerolog.Logger) *Controller {
	return &Controller{
		reader:  reader,
		filter:  filter,
		events:  events,
		rollups: rollups,
		logger:  obslog.Named(logger, "ingestion-controller"),
	}
}

// Result summarizes one ProcessObject call.
type Result struct {
	Domain    string
	Processed int
	Written   int
	Failures  []rollup.FailedUpdate
}

// ExtractDomain derives the canonical domain from the object key. Key shape
// is "{domain}/YYYY/MM/DD/{distribution}.{yyyy-mm-dd-hh}.{id}.gz" (§4.3/§6).
func ExtractDomain(key string) (string, bool) {
	parts := strings.SplitN(key, "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		return "", false
	}
	return parts[0], true
}

// ProcessObject handles one delivered object end to end. A failure from the
// reader or the event writer is fatal to the invocation so the platform can
// redeliver (§4.3 step 5, §7 "Store-fatal / reader-fatal"); a rollup update
// failure is recorded in Result.Failures and does not fail the call.
func (c *Controller) ProcessObject(ctx context.Context, bucket, key string) (Result, error) {
	domain, ok := ExtractDomain(key)
	if !ok {
		c.logger.Warn().Str("key", key).Msg("could not extract domain from object key")
		return Result{}, nil
	}

	content, err := c.reader.FetchText(ctx, bucket, key)
	if err != nil {
		return Result{Domain: domain}, fmt.Errorf("fetch object s3://%s/%s: %w", bucket, key, err)
	}

	var kept []logline.Event
	acc := rollup.NewAccumulator()

	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		ev, ok := logline.Parse(line)
		if !ok {
			continue
		}
		if c.filter.Exclude(ev.Path) {
			continue
		}
		// Overwrite the edge-CDN host with the canonical site domain (§4.3 step 3).
		ev.Domain = domain
		kept = append(kept, ev)
		acc.Add(ev)
	}

	result := Result{Domain: domain, Processed: len(kept)}

	if len(kept) == 0 {
		c.logger.Info().Str("domain", domain).Str("key", key).Msg("no events kept from object")
		return result, nil
	}

	written, err := c.events.WriteAll(ctx, kept)
	result.Written = written
	if err != nil {
		return result, fmt.Errorf("write events for %s: %w", key, err)
	}

	result.Failures = c.rollups.Flush(ctx, acc)

	c.logger.Info().
		Str("domain", domain).
		Str("key", key).
		Int("processed", result.Processed).
		Int("written", result.Written).
		Int("rollup_failures", len(result.Failures)).
		Msg("object processed")

	return result, nil
}

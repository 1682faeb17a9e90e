/*
Package eventwriter batches kept log events into Event Store rows (§4.4).
*/
package eventwriter

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/outcomeops/analytics-ingest/internal/logline"
	"github.com/outcomeops/analytics-ingest/internal/obslog"
	"github.com/outcomeops/analytics-ingest/internal/schema"
	"github.com/outcomeops/analytics-ingest/internal/store"
)

// Writer batch-puts normalized events to the Event Store.
type Writer struct {
	client *store.Client
	table  string
	logger zerolog.Logger
}

// NewWriter builds an event Writer targeting table.
func NewWriter(client *store.Client, table string, logger zerolog.Logger) *Writer {
	return &Writer{client: client, table: table, logger: obslog.Named(logger, "event-writer")}
}

// WriteAll builds and batch-puts rows for every kept event. Writes are
// at-least-once; the (PK, SK) key makes a replayed line idempotent (P1).
func (w *Writer) WriteAll(ctx context.Context, events []logline.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	items := make([]store.Item, 0, len(events))
	for _, ev := range events {
		rec := schema.EventRecord{
			Domain:         ev.Domain,
			Path:           ev.Path,
			Timestamp:      ev.Timestamp,
			Date:           ev.Date,
			Status:         ev.Status,
			RequestID:      ev.RequestID,
			Referrer:       ev.Referrer,
			ReferrerDomain: ev.ReferrerDomain,
			UserAgent:      ev.UserAgent,
			ClientIP:       ev.ClientIP,
		}
		items = append(items, schema.EventItem(rec, now))
	}

	written, err := w.client.BatchPutItems(ctx, w.table, items)
	if err != nil {
		w.logger.Warn().Err(err).Int("attempted", len(items)).Int("written", written).Msg("event batch write incomplete")
	}
	return written, err
}

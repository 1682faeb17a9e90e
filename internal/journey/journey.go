/*
Package journey implements the Journey Tracker's validation and enrichment
logic (§4.6), independent of transport: a raw client-submitted event map is
validated against the domain allow-list and the event-type enum, then
enriched with server-assigned timestamp/event_id/date fields before it is
handed to the Event Store as a schema.SessionEvent.
*/
package journey

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/outcomeops/analytics-ingest/internal/config"
	"github.com/outcomeops/analytics-ingest/internal/obslog"
	"github.com/outcomeops/analytics-ingest/internal/schema"
	"github.com/outcomeops/analytics-ingest/internal/store"
)

// RawEvent is the client-submitted tracking event, decoded from JSON. Numeric
// and boolean fields are pointers so "absent" is distinguishable from the
// zero value (§4.6).
type RawEvent struct {
	SessionID string `json:"session_id"`
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Domain    string `json:"domain"`
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`

	Referrer       string   `json:"referrer"`
	PreviousPath   string   `json:"previous_path"`
	ScrollDepth    *float64 `json:"scroll_depth"`
	TimeOnPage     *float64 `json:"time_on_page"`
	UserAgent      string   `json:"user_agent"`
	ScreenWidth    *int64   `json:"screen_width"`
	ScreenHeight   *int64   `json:"screen_height"`
	ViewportWidth  *int64   `json:"viewport_width"`
	ViewportHeight *int64   `json:"viewport_height"`
	IsAIPattern    *bool    `json:"is_ai_pattern"`
	MatchedPattern string   `json:"matched_pattern"`
}

// ValidationError reports which tracking event field failed validation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validate checks a raw event against the required-field, domain allow-list,
// and event-type rules of §4.6. It returns nil if the event is acceptable.
func Validate(ev RawEvent, cfg *config.Config) error {
	if ev.SessionID == "" {
		return &ValidationError{Message: "missing required field: session_id"}
	}
	if ev.EventType == "" {
		return &ValidationError{Message: "missing required field: event_type"}
	}
	if ev.Domain == "" {
		return &ValidationError{Message: "missing required field: domain"}
	}
	if ev.Path == "" {
		return &ValidationError{Message: "missing required field: path"}
	}
	if !cfg.IsAllowedDomain(ev.Domain) {
		return &ValidationError{Message: fmt.Sprintf("domain not allowed: %s", ev.Domain)}
	}
	if !schema.IsValidEventType(ev.EventType) {
		return &ValidationError{Message: fmt.Sprintf("invalid event type: %s", ev.EventType)}
	}
	return nil
}

// Enrich fills in the server-assigned timestamp, event_id, and date of a
// validated raw event, then maps it onto a schema.SessionEvent ready for the
// Event Store (§4.6 step 3). now is the server clock; callers always pass
// time.Now().UTC() except in tests.
func Enrich(ev RawEvent, now time.Time) schema.SessionEvent {
	timestamp := ev.Timestamp
	if timestamp == "" {
		timestamp = now.Format("2006-01-02T15:04:05.000000Z")
	}

	eventID := ev.EventID
	if eventID == "" {
		eventID = shortID()
	}

	date := deriveDate(timestamp, now)

	return schema.SessionEvent{
		SessionID:      ev.SessionID,
		EventID:        eventID,
		EventType:      ev.EventType,
		Domain:         ev.Domain,
		Path:           ev.Path,
		Timestamp:      timestamp,
		Date:           date,
		Referrer:       ev.Referrer,
		PreviousPath:   ev.PreviousPath,
		ScrollDepth:    ev.ScrollDepth,
		TimeOnPage:     ev.TimeOnPage,
		UserAgent:      ev.UserAgent,
		ScreenWidth:    ev.ScreenWidth,
		ScreenHeight:   ev.ScreenHeight,
		ViewportWidth:  ev.ViewportWidth,
		ViewportHeight: ev.ViewportHeight,
		IsAIPattern:    ev.IsAIPattern,
		MatchedPattern: ev.MatchedPattern,
	}
}

// deriveDate extracts the YYYY-MM-DD date prefix from timestamp, falling
// back to now's date if the timestamp is too short to carry one (§4.6).
func deriveDate(timestamp string, now time.Time) string {
	if len(timestamp) < 10 {
		return now.Format("2006-01-02")
	}
	return timestamp[:10]
}

// shortID returns an 8-character unique id, matching the original handler's
// truncated-uuid4 event_id shape.
func shortID() string {
	return uuid.New().String()[:8]
}

// Writer persists enriched session events to the sessions Event Store table.
// It implements journeyhttp.EventWriter.
type Writer struct {
	client *store.Client
	table  string
	logger zerolog.Logger
}

// NewWriter builds a session-event Writer targeting table.
func NewWriter(client *store.Client, table string, logger zerolog.Logger) *Writer {
	return &Writer{client: client, table: table, logger: obslog.Named(logger, "journey-writer")}
}

// WriteOne puts a single enriched session event (§4.6 step 3).
func (w *Writer) WriteOne(ctx context.Context, ev schema.SessionEvent) error {
	item := schema.SessionEventItem(ev, time.Now().UTC())
	if err := w.client.PutItem(ctx, w.table, item); err != nil {
		w.logger.Warn().Err(err).Str("session_id", ev.SessionID).Msg("failed to write session event")
		return err
	}
	return nil
}

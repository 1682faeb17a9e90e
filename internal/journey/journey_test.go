package journey_test

import (
	"testing"
	"time"

	"github.com/outcomeops/analytics-ingest/internal/config"
	"github.com/outcomeops/analytics-ingest/internal/journey"
)

func testConfig() *config.Config {
	return &config.Config{AllowedDomains: []string{"myfantasy.ai", "example.com"}}
}

func TestValidateMissingFields(t *testing.T) {
	cfg := testConfig()
	cases := []struct {
		name string
		ev   journey.RawEvent
	}{
		{"missing session_id", journey.RawEvent{EventType: "pageview", Domain: "myfantasy.ai", Path: "/"}},
		{"missing event_type", journey.RawEvent{SessionID: "s1", Domain: "myfantasy.ai", Path: "/"}},
		{"missing domain", journey.RawEvent{SessionID: "s1", EventType: "pageview", Path: "/"}},
		{"missing path", journey.RawEvent{SessionID: "s1", EventType: "pageview", Domain: "myfantasy.ai"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := journey.Validate(tc.ev, cfg); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestValidateDomainNotAllowed(t *testing.T) {
	cfg := testConfig()
	ev := journey.RawEvent{SessionID: "s1", EventType: "pageview", Domain: "evil.example", Path: "/"}
	if err := journey.Validate(ev, cfg); err == nil {
		t.Fatalf("expected domain-not-allowed error")
	}
}

func TestValidateInvalidEventType(t *testing.T) {
	cfg := testConfig()
	ev := journey.RawEvent{SessionID: "s1", EventType: "click", Domain: "myfantasy.ai", Path: "/"}
	if err := journey.Validate(ev, cfg); err == nil {
		t.Fatalf("expected invalid-event-type error")
	}
}

func TestValidateAcceptsAllEnumeratedTypes(t *testing.T) {
	cfg := testConfig()
	for _, et := range []string{"session_start", "pageview", "navigation", "scroll", "time_on_page", "session_end", "not_found"} {
		ev := journey.RawEvent{SessionID: "s1", EventType: et, Domain: "myfantasy.ai", Path: "/"}
		if err := journey.Validate(ev, cfg); err != nil {
			t.Fatalf("expected %s to be valid, got %v", et, err)
		}
	}
}

func TestEnrichUsesClientTimestampWhenPresent(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	ev := journey.RawEvent{
		SessionID: "s1", EventType: "pageview", Domain: "myfantasy.ai", Path: "/",
		Timestamp: "2024-01-10T08:00:00.000000", EventID: "abcd1234",
	}
	se := journey.Enrich(ev, now)
	if se.Timestamp != "2024-01-10T08:00:00.000000" {
		t.Fatalf("expected client timestamp preserved, got %s", se.Timestamp)
	}
	if se.Date != "2024-01-10" {
		t.Fatalf("expected date derived from client timestamp, got %s", se.Date)
	}
	if se.EventID != "abcd1234" {
		t.Fatalf("expected client event_id preserved, got %s", se.EventID)
	}
}

func TestEnrichFallsBackToServerTimeAndGeneratesEventID(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	ev := journey.RawEvent{SessionID: "s1", EventType: "pageview", Domain: "myfantasy.ai", Path: "/"}
	se := journey.Enrich(ev, now)
	if se.Date != "2024-01-15" {
		t.Fatalf("expected server-derived date, got %s", se.Date)
	}
	if len(se.EventID) != 8 {
		t.Fatalf("expected an 8-character generated event id, got %q", se.EventID)
	}
	if se.Timestamp != "2024-01-15T12:00:00.000000Z" {
		t.Fatalf("expected server timestamp with trailing Z, got %s", se.Timestamp)
	}
}

func TestEnrichOptionalFieldsPassThrough(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	scrollDepth := 87.5
	isAI := true
	ev := journey.RawEvent{
		SessionID: "s1", EventType: "not_found", Domain: "myfantasy.ai", Path: "/missing",
		ScrollDepth: &scrollDepth, IsAIPattern: &isAI, MatchedPattern: "gpt-phantom-link",
	}
	se := journey.Enrich(ev, now)
	if se.ScrollDepth == nil || *se.ScrollDepth != 87.5 {
		t.Fatalf("expected scroll_depth to pass through, got %+v", se.ScrollDepth)
	}
	if se.IsAIPattern == nil || !*se.IsAIPattern {
		t.Fatalf("expected is_ai_pattern to pass through, got %+v", se.IsAIPattern)
	}
	if se.MatchedPattern != "gpt-phantom-link" {
		t.Fatalf("expected matched_pattern to pass through, got %s", se.MatchedPattern)
	}
}

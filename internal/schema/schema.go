/*
Package schema centralizes the wide-column row shapes of §3: event rows,
session event rows, rollup rows, and cache rows. This plays the role the
teacher's analytics/schema.go plays for its ClickHouse tables — one place
that owns the wire/storage shape for each row family — except these
builders produce DynamoDB item maps instead of DDL strings.
*/
package schema

import (
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/outcomeops/analytics-ingest/internal/store"
)

// EventTTL is how long a request-event or session-event row lives (§3: "90 days from ingest").
const EventTTL = 90 * 24 * time.Hour

// CacheTTL is how long a cache row lives (§3: "2 h from write").
const CacheTTL = 2 * time.Hour

// EventRecord is one normalized request event, ready to be written.
type EventRecord struct {
	Domain         string
	Path           string
	Timestamp      string // ISO-8601 with trailing Z
	Date           string // timestamp[0:10]
	Status         string
	RequestID      string
	Referrer       string
	ReferrerDomain string
	UserAgent      string
	ClientIP       string
}

// EventItem builds the Event Store row for a request event (§3 "Event row").
func EventItem(rec EventRecord, now time.Time) store.Item {
	item := store.Item{
		"PK":         s(rec.Domain + "#" + rec.Date),
		"SK":         s(rec.Timestamp + "#" + rec.RequestID),
		"domain":     s(rec.Domain),
		"path":       s(rec.Path),
		"timestamp":  s(rec.Timestamp),
		"status":     s(rec.Status),
		"request_id": s(rec.RequestID),
		"ttl":        n(now.Add(EventTTL).Unix()),
		"GSI1PK":     s(rec.Domain + "#" + rec.Path),
		"GSI1SK":     s(rec.Timestamp),
	}
	if rec.Referrer != "" {
		item["referrer"] = s(rec.Referrer)
	}
	if rec.ReferrerDomain != "" {
		item["referrer_domain"] = s(rec.ReferrerDomain)
		item["GSI2PK"] = s(rec.Domain + "#" + rec.ReferrerDomain)
		item["GSI2SK"] = s(rec.Timestamp)
	}
	if rec.UserAgent != "" {
		item["user_agent"] = s(rec.UserAgent)
	}
	if rec.ClientIP != "" {
		item["client_ip"] = s(rec.ClientIP)
	}
	return item
}

// EventType enumerates the session event kinds of §3.
type EventType string

const (
	EventSessionStart EventType = "session_start"
	EventPageview     EventType = "pageview"
	EventNavigation   EventType = "navigation"
	EventScroll       EventType = "scroll"
	EventTimeOnPage   EventType = "time_on_page"
	EventSessionEnd   EventType = "session_end"
	EventNotFound     EventType = "not_found"
)

// ValidEventTypes is the full enumeration, in the order the original
// handler validates against.
var ValidEventTypes = []EventType{
	EventSessionStart, EventPageview, EventNavigation, EventScroll,
	EventTimeOnPage, EventSessionEnd, EventNotFound,
}

// IsValidEventType reports whether s names one of the seven enumerated kinds.
func IsValidEventType(s string) bool {
	for _, t := range ValidEventTypes {
		if string(t) == s {
			return true
		}
	}
	return false
}

// SessionEvent is one client-emitted journey event, fully enriched and
// ready to be written (§3 "Session event row", §4.6).
type SessionEvent struct {
	SessionID string
	EventID   string
	EventType string
	Domain    string
	Path      string
	Timestamp string
	Date      string

	Referrer       string
	PreviousPath   string
	ScrollDepth    *float64
	TimeOnPage     *float64
	UserAgent      string
	ScreenWidth    *int64
	ScreenHeight   *int64
	ViewportWidth  *int64
	ViewportHeight *int64
	IsAIPattern    *bool
	MatchedPattern string
}

// SessionEventItem builds the Event Store row for a session event.
func SessionEventItem(ev SessionEvent, now time.Time) store.Item {
	item := store.Item{
		"PK":         s("SESSION#" + ev.SessionID),
		"SK":         s("EVENT#" + ev.Timestamp + "#" + ev.EventID),
		"GSI1PK":     s("DOMAIN#" + ev.Domain + "#DATE#" + ev.Date),
		"GSI1SK":     s("SESSION#" + ev.SessionID),
		"GSI2PK":     s("DOMAIN#" + ev.Domain + "#PATH#" + ev.Path),
		"GSI2SK":     s(ev.Timestamp),
		"session_id": s(ev.SessionID),
		"event_type": s(ev.EventType),
		"domain":     s(ev.Domain),
		"path":       s(ev.Path),
		"timestamp":  s(ev.Timestamp),
		"ttl":        n(now.Add(EventTTL).Unix()),
	}
	if ev.Referrer != "" {
		item["referrer"] = s(ev.Referrer)
	}
	if ev.PreviousPath != "" {
		item["previous_path"] = s(ev.PreviousPath)
	}
	if ev.ScrollDepth != nil {
		item["scroll_depth"] = f(*ev.ScrollDepth)
	}
	if ev.TimeOnPage != nil {
		item["time_on_page"] = f(*ev.TimeOnPage)
	}
	if ev.UserAgent != "" {
		item["user_agent"] = s(ev.UserAgent)
	}
	if ev.ScreenWidth != nil {
		item["screen_width"] = n(*ev.ScreenWidth)
	}
	if ev.ScreenHeight != nil {
		item["screen_height"] = n(*ev.ScreenHeight)
	}
	if ev.ViewportWidth != nil {
		item["viewport_width"] = n(*ev.ViewportWidth)
	}
	if ev.ViewportHeight != nil {
		item["viewport_height"] = n(*ev.ViewportHeight)
	}
	if ev.IsAIPattern != nil {
		item["is_ai_pattern"] = b(*ev.IsAIPattern)
	}
	if ev.MatchedPattern != "" {
		item["matched_pattern"] = s(ev.MatchedPattern)
	}
	return item
}

// RollupPK is the partition key shared by every rollup row for a domain.
func RollupPK(domain string) string {
	return "ROLLUP#" + domain
}

// StatsKey is the daily-stats rollup row key.
func StatsKey(domain, date string) store.Key {
	return store.Key{PK: RollupPK(domain), SK: "STATS#" + date}
}

// PageKey is the page-count rollup row key.
func PageKey(domain, date, path string) store.Key {
	return store.Key{PK: RollupPK(domain), SK: "PAGE#" + date + "#" + path}
}

// ReferrerKey is the referrer-count rollup row key.
func ReferrerKey(domain, date, referrerDomain string) store.Key {
	return store.Key{PK: RollupPK(domain), SK: "REF#" + date + "#" + referrerDomain}
}

// HourKey is the hourly-count rollup row key.
func HourKey(domain, date, hour string) store.Key {
	return store.Key{PK: RollupPK(domain), SK: "HOUR#" + date + "#" + hour}
}

// ParseRollupSK strips prefix off a rollup SK and returns the remainder, the
// way the cache builder strips "PAGE#{date}#" off each item's SK to recover
// the path. ok is false when sk does not start with prefix.
func ParseRollupSK(sk, prefix string) (rest string, ok bool) {
	if !strings.HasPrefix(sk, prefix) {
		return "", false
	}
	return strings.TrimPrefix(sk, prefix), true
}

// CacheItem builds a query-API cache row (§3 "Cache row", §4.7).
func CacheItem(domain, cacheType string, data []byte, fromDate, toDate string, now time.Time) store.Item {
	return store.Item{
		"PK":        s("CACHE#" + domain),
		"SK":        s(cacheType),
		"data":      s(string(data)),
		"from_date": s(fromDate),
		"to_date":   s(toDate),
		"built_at":  s(now.UTC().Format(time.RFC3339)),
		"ttl":       n(now.Add(CacheTTL).Unix()),
	}
}

func s(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}

func n(v int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}
}

func f(v float64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatFloat(v, 'f', -1, 64)}
}

func b(v bool) types.AttributeValue {
	return &types.AttributeValueMemberBOOL{Value: v}
}

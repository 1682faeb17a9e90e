package logline_test

import (
	"strings"
	"testing"

	"github.com/outcomeops/analytics-ingest/internal/logline"
)

// field order: date time x-edge-location sc-bytes c-ip cs-method cs(Host)
// cs-uri-stem sc-status cs(Referer) cs(User-Agent) ...(11..13 filler)... x-edge-request-id
func buildLine(date, timeStr, ip, host, path, status, referer, ua, requestID string) string {
	fields := make([]string, 20)
	for i := range fields {
		fields[i] = "-"
	}
	fields[0] = date
	fields[1] = timeStr
	fields[4] = ip
	fields[6] = host
	fields[7] = path
	fields[8] = status
	fields[9] = referer
	fields[10] = ua
	fields[14] = requestID
	return strings.Join(fields, "\t")
}

func TestParseScenario1EventAndReferrer(t *testing.T) {
	line := buildLine("2024-01-15", "12:00:00", "1.2.3.4", "myfantasy.ai", "/", "200", "https://google.com/", "-", "r1")

	ev, ok := logline.Parse(line)
	if !ok {
		t.Fatalf("expected line to parse")
	}
	if ev.Timestamp != "2024-01-15T12:00:00Z" {
		t.Fatalf("unexpected timestamp: %s", ev.Timestamp)
	}
	if ev.Date != "2024-01-15" {
		t.Fatalf("unexpected date: %s", ev.Date)
	}
	if ev.ReferrerDomain != "google.com" {
		t.Fatalf("expected referrer_domain=google.com, got %q", ev.ReferrerDomain)
	}
	if ev.ClientIP != "1.2.3.4" || ev.RequestID != "r1" {
		t.Fatalf("unexpected ip/request id: %+v", ev)
	}
}

func TestParseScenario2SelfReferralSuppressed(t *testing.T) {
	line := buildLine("2024-01-15", "12:00:00", "1.2.3.4", "myfantasy.ai", "/", "200", "https://www.myfantasy.ai/home", "-", "r2")

	ev, ok := logline.Parse(line)
	if !ok {
		t.Fatalf("expected line to parse")
	}
	if ev.ReferrerDomain != "" {
		t.Fatalf("expected self-referral to be suppressed, got %q", ev.ReferrerDomain)
	}
}

func TestParseScenario3CommentLinesSkipped(t *testing.T) {
	for _, line := range []string{"#Version: 1.0", "#Fields: date time"} {
		if _, ok := logline.Parse(line); ok {
			t.Fatalf("expected comment line to be skipped: %q", line)
		}
	}
}

func TestParseTooFewFieldsSkipped(t *testing.T) {
	if _, ok := logline.Parse("a\tb\tc"); ok {
		t.Fatalf("expected short line to be skipped")
	}
}

func TestParseDashSentinelsAreAbsent(t *testing.T) {
	line := buildLine("2024-01-15", "12:00:00", "1.2.3.4", "example.com", "/", "200", "-", "-", "-")
	ev, ok := logline.Parse(line)
	if !ok {
		t.Fatalf("expected line to parse")
	}
	if ev.Referrer != "" || ev.UserAgent != "" || ev.RequestID != "" {
		t.Fatalf("expected dash fields to be absent, got %+v", ev)
	}
}

func TestReferrerDomainTableP3(t *testing.T) {
	cases := []struct {
		name     string
		host     string
		referer  string
		expected string
	}{
		{"empty referer", "example.com", "", ""},
		{"exact self", "example.com", "https://example.com/x", ""},
		{"www variant self", "www.example.com", "https://example.com/x", ""},
		{"both www", "www.example.com", "https://www.example.com/x", ""},
		{"external", "example.com", "https://other.com/x", "other.com"},
		{"external www stripped", "example.com", "https://www.other.com/x", "other.com"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			line := buildLine("2024-01-15", "12:00:00", "1.2.3.4", tc.host, "/", "200", tc.referer, "-", "r")
			ev, ok := logline.Parse(line)
			if !ok {
				t.Fatalf("expected line to parse")
			}
			if ev.ReferrerDomain != tc.expected {
				t.Fatalf("expected referrer_domain=%q, got %q", tc.expected, ev.ReferrerDomain)
			}
		})
	}
}

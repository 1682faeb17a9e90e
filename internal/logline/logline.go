/*
Package logline parses one edge-CDN access-log record into a normalized
event. The CDN's tab-separated log format carries 33 fields per the format
the original handler documented:

	date time x-edge-location sc-bytes c-ip cs-method cs(Host) cs-uri-stem
	sc-status cs(Referer) cs(User-Agent) cs-uri-query cs(Cookie)
	x-edge-result-type x-edge-request-id x-host-header cs-protocol
	cs-bytes time-taken x-forwarded-for ssl-protocol ssl-cipher
	x-edge-response-result-type cs-protocol-version fle-status
	fle-encrypted-fields c-port time-to-first-byte x-edge-detailed-result-type
	sc-content-type sc-content-len sc-range-start sc-range-end

Only a handful of fields are consumed (§4.1); the rest pass through unused.
*/
package logline

import (
	"net/url"
	"strings"
)

const minFields = 20

// Field positions consumed from the tab-separated record (§4.1).
const (
	fieldDate      = 0
	fieldTime      = 1
	fieldClientIP  = 4
	fieldHost      = 6
	fieldURIStem   = 7
	fieldStatus    = 8
	fieldReferer   = 9
	fieldUserAgent = 10
	fieldRequestID = 14
)

// Event is one normalized log record, with domain still set to the
// edge-CDN host — the ingestion controller overwrites it with the
// key-derived canonical domain (§4.3 step 3).
type Event struct {
	Domain         string
	Timestamp      string
	Date           string
	Path           string
	Status         string
	Referrer       string
	ReferrerDomain string
	UserAgent      string
	ClientIP       string
	RequestID      string
}

// Parse parses one tab-separated log line. It returns ok=false for comment
// lines, structurally invalid lines (fewer than minFields tab-separated
// fields), or any other parse failure — callers skip the line and continue
// (§4.1: "never aborts the object").
func Parse(line string) (Event, bool) {
	if strings.HasPrefix(line, "#") {
		return Event{}, false
	}

	fields := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
	if len(fields) < minFields {
		return Event{}, false
	}

	date := fields[fieldDate]
	timeStr := fields[fieldTime]
	host := fields[fieldHost]

	path, err := url.PathUnescape(fields[fieldURIStem])
	if err != nil {
		return Event{}, false
	}

	referer := optional(fields[fieldReferer])
	if referer != "" {
		decoded, err := url.PathUnescape(referer)
		if err != nil {
			return Event{}, false
		}
		referer = decoded
	}

	ev := Event{
		Domain:    host,
		Timestamp: date + "T" + timeStr + "Z",
		Date:      date,
		Path:      path,
		Status:    fields[fieldStatus],
		Referrer:  referer,
		UserAgent: optional(fields[fieldUserAgent]),
		ClientIP:  fields[fieldClientIP],
		RequestID: optional(fields[fieldRequestID]),
	}
	ev.ReferrerDomain = referrerDomain(referer, host)

	return ev, true
}

// optional maps the CDN's "-" sentinel to the empty string (§4.1).
func optional(v string) string {
	if v == "-" {
		return ""
	}
	return v
}

// referrerDomain derives the referrer_domain attribute per §4.1/P3: parse
// the referer as a URL, lowercase+strip "www." from its host, compare to
// the event host normalized the same way, and suppress self-referrals.
func referrerDomain(referer, host string) string {
	if referer == "" {
		return ""
	}
	u, err := url.Parse(referer)
	if err != nil {
		return ""
	}
	refHost := normalizeHost(u.Host)
	if refHost == "" || refHost == normalizeHost(host) {
		return ""
	}
	return refHost
}

func normalizeHost(h string) string {
	h = strings.ToLower(h)
	return strings.TrimPrefix(h, "www.")
}

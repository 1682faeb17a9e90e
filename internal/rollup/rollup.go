/*
Package rollup implements the two-phase rollup writer of §4.5: a
single-writer in-memory accumulator per invocation (Phase 1), then a set of
atomic ADD updates against the Event Store (Phase 2). The accumulator's
additive, commutative nature is what gives §5's concurrency guarantee (P2):
any interleaving of concurrent object processings converges to the same
final counters.
*/
package rollup

import (
	"context"
	"reflect"
	"time"

	"github.com/rs/zerolog"

	"github.com/outcomeops/analytics-ingest/internal/logline"
	"github.com/outcomeops/analytics-ingest/internal/obslog"
	"github.com/outcomeops/analytics-ingest/internal/schema"
	"github.com/outcomeops/analytics-ingest/internal/store"
)

type dailyKey struct {
	domain, date string
}

type pageKey struct {
	domain, date, path string
}

type refKey struct {
	domain, date, referrerDomain string
}

type hourKey struct {
	domain, date, hour string
}

type dailyStats struct {
	requests int64
	ips      map[string]struct{}
}

// Accumulator is the single-writer, per-invocation Phase 1 aggregator.
// It is not safe for concurrent use — each ingestion invocation owns its
// own Accumulator (§5: "single-writer (the invocation itself) — no
// locking required").
type Accumulator struct {
	daily map[dailyKey]*dailyStats
	pages map[pageKey]int64
	refs  map[refKey]int64
	hours map[hourKey]int64
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		daily: make(map[dailyKey]*dailyStats),
		pages: make(map[pageKey]int64),
		refs:  make(map[refKey]int64),
		hours: make(map[hourKey]int64),
	}
}

// Add folds one kept event into the accumulator (§4.5 Phase 1).
func (a *Accumulator) Add(ev logline.Event) {
	dk := dailyKey{domain: ev.Domain, date: ev.Date}
	ds, ok := a.daily[dk]
	if !ok {
		ds = &dailyStats{ips: make(map[string]struct{})}
		a.daily[dk] = ds
	}
	ds.requests++
	if ev.ClientIP != "" {
		ds.ips[ev.ClientIP] = struct{}{}
	}

	a.pages[pageKey{domain: ev.Domain, date: ev.Date, path: ev.Path}]++

	if ev.ReferrerDomain != "" {
		a.refs[refKey{domain: ev.Domain, date: ev.Date, referrerDomain: ev.ReferrerDomain}]++
	}

	a.hours[hourKey{domain: ev.Domain, date: ev.Date, hour: hourOf(ev.Timestamp)}]++
}

// hourOf extracts the two-digit UTC hour from an ISO-8601 timestamp,
// defaulting to "00" if the timestamp is too short (§4.5).
func hourOf(timestamp string) string {
	if len(timestamp) < 13 {
		return "00"
	}
	return timestamp[11:13]
}

// Merge folds other into a, useful for combining accumulators built by
// independent goroutines before the Phase 2 flush (P2 commutativity).
func (a *Accumulator) Merge(other *Accumulator) {
	for k, ds := range other.daily {
		dst, ok := a.daily[k]
		if !ok {
			dst = &dailyStats{ips: make(map[string]struct{})}
			a.daily[k] = dst
		}
		dst.requests += ds.requests
		for ip := range ds.ips {
			dst.ips[ip] = struct{}{}
		}
	}
	for k, v := range other.pages {
		a.pages[k] += v
	}
	for k, v := range other.refs {
		a.refs[k] += v
	}
	for k, v := range other.hours {
		a.hours[k] += v
	}
}

// Empty reports whether the accumulator holds no deltas.
func (a *Accumulator) Empty() bool {
	return len(a.daily) == 0 && len(a.pages) == 0 && len(a.refs) == 0 && len(a.hours) == 0
}

// Totals is a comparable snapshot of an accumulator's deltas, useful for
// tests and for logging/metrics without exposing the internal key types.
type Totals struct {
	DailyRequests map[string]int64
	UniqueIPs     map[string]int
	Pages         map[string]int64
	Referrers     map[string]int64
	Hours         map[string]int64
}

// Totals snapshots the accumulator's current deltas.
func (a *Accumulator) Totals() Totals {
	t := Totals{
		DailyRequests: make(map[string]int64, len(a.daily)),
		UniqueIPs:     make(map[string]int, len(a.daily)),
		Pages:         make(map[string]int64, len(a.pages)),
		Referrers:     make(map[string]int64, len(a.refs)),
		Hours:         make(map[string]int64, len(a.hours)),
	}
	for k, ds := range a.daily {
		key := k.domain + "|" + k.date
		t.DailyRequests[key] = ds.requests
		t.UniqueIPs[key] = len(ds.ips)
	}
	for k, v := range a.pages {
		t.Pages[k.domain+"|"+k.date+"|"+k.path] = v
	}
	for k, v := range a.refs {
		t.Referrers[k.domain+"|"+k.date+"|"+k.referrerDomain] = v
	}
	for k, v := range a.hours {
		t.Hours[k.domain+"|"+k.date+"|"+k.hour] = v
	}
	return t
}

// Equal reports whether two accumulators hold identical deltas, regardless
// of the order their events were added in (P2 commutativity).
func Equal(a, b *Accumulator) bool {
	return reflect.DeepEqual(a.Totals(), b.Totals())
}

// HasHourBucket reports whether the accumulator has a delta for the given
// domain/date/hour bucket.
func HasHourBucket(a *Accumulator, domain, date, hour string) bool {
	_, ok := a.hours[hourKey{domain: domain, date: date, hour: hour}]
	return ok
}

// FailedUpdate records one Phase 2 update that failed after the accumulator
// had already aggregated its contribution; failures are logged at WARN and
// skipped (§4.5, §9: "a supervising metric... should be surfaced").
type FailedUpdate struct {
	Family string
	Key    store.Key
	Err    error
}

// Writer issues Phase 2 atomic updates against the Event Store.
type Writer struct {
	client *store.Client
	table  string
	logger zerolog.Logger
}

// NewWriter builds a rollup Writer targeting table.
func NewWriter(client *store.Client, table string, logger zerolog.Logger) *Writer {
	return &Writer{client: client, table: table, logger: obslog.Named(logger, "rollup-writer")}
}

// Flush issues the Phase 2 ADD updates for every key in the accumulator.
// A failed update on one key is logged and skipped — it degrades accuracy
// for that counter but never corrupts others (§4.5, §7).
func (w *Writer) Flush(ctx context.Context, a *Accumulator) []FailedUpdate {
	now := time.Now().UTC()
	var failures []FailedUpdate

	for dk, ds := range a.daily {
		key := schema.StatsKey(dk.domain, dk.date)
		sets := store.StringSetAdds{}
		if len(ds.ips) > 0 {
			sets["unique_ips"] = keysOf(ds.ips)
		}
		if err := w.client.UpdateAdd(ctx, w.table, key, store.NumericAdds{"requests": ds.requests}, sets, now); err != nil {
			w.logger.Warn().Err(err).Str("domain", dk.domain).Str("date", dk.date).Msg("failed to update daily rollup")
			failures = append(failures, FailedUpdate{Family: "daily", Key: key, Err: err})
		}
	}

	for pk, count := range a.pages {
		key := schema.PageKey(pk.domain, pk.date, pk.path)
		if err := w.client.UpdateAdd(ctx, w.table, key, store.NumericAdds{"count": count}, nil, now); err != nil {
			w.logger.Warn().Err(err).Str("domain", pk.domain).Str("path", pk.path).Msg("failed to update page rollup")
			failures = append(failures, FailedUpdate{Family: "page", Key: key, Err: err})
		}
	}

	for rk, count := range a.refs {
		key := schema.ReferrerKey(rk.domain, rk.date, rk.referrerDomain)
		if err := w.client.UpdateAdd(ctx, w.table, key, store.NumericAdds{"count": count}, nil, now); err != nil {
			w.logger.Warn().Err(err).Str("domain", rk.domain).Str("referrer_domain", rk.referrerDomain).Msg("failed to update referrer rollup")
			failures = append(failures, FailedUpdate{Family: "referrer", Key: key, Err: err})
		}
	}

	for hk, count := range a.hours {
		key := schema.HourKey(hk.domain, hk.date, hk.hour)
		if err := w.client.UpdateAdd(ctx, w.table, key, store.NumericAdds{"count": count}, nil, now); err != nil {
			w.logger.Warn().Err(err).Str("domain", hk.domain).Str("hour", hk.hour).Msg("failed to update hourly rollup")
			failures = append(failures, FailedUpdate{Family: "hour", Key: key, Err: err})
		}
	}

	w.logger.Info().
		Int("daily", len(a.daily)).
		Int("pages", len(a.pages)).
		Int("referrers", len(a.refs)).
		Int("hours", len(a.hours)).
		Int("failures", len(failures)).
		Msg("rollup flush complete")

	return failures
}

func keysOf(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

/*
Package cachebuilder implements the periodic cache-building job of §4.7: for
each configured domain, read the last 7 UTC days of rollup rows and write
four pre-aggregated cache rows (stats, pages, referrers, hours) the query API
reads instead of re-scanning rollups on every request.
*/
package cachebuilder

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/outcomeops/analytics-ingest/internal/obslog"
	"github.com/outcomeops/analytics-ingest/internal/schema"
	"github.com/outcomeops/analytics-ingest/internal/store"
)

const (
	topN          = 10
	dateRangeDays = 7
)

// Builder builds and writes cache rows for a set of domains.
type Builder struct {
	client *store.Client
	table  string
	logger zerolog.Logger
}

// NewBuilder builds a cache Builder targeting table.
func NewBuilder(client *store.Client, table string, logger zerolog.Logger) *Builder {
	return &Builder{client: client, table: table, logger: obslog.Named(logger, "cache-builder")}
}

// DateRange returns the last n UTC calendar days, inclusive of today, sorted
// ascending (§4.7: "last 7 UTC days inclusive of today").
func DateRange(now time.Time, n int) []string {
	today := now.UTC()
	dates := make([]string, 0, n)
	for i := 0; i < n; i++ {
		dates = append(dates, today.AddDate(0, 0, -i).Format("2006-01-02"))
	}
	sort.Strings(dates)
	return dates
}

// StatsCache is the daily-requests/unique-visitors cache payload.
type StatsCache struct {
	TotalRequests   int64            `json:"total_requests"`
	UniqueVisitors  int              `json:"unique_visitors"`
	Daily           map[string]int64 `json:"daily"`
}

// PageCount is one entry of the top-N pages cache payload.
type PageCount struct {
	Path  string `json:"path"`
	Count int64  `json:"count"`
}

// PagesCache is the top-N pages cache payload.
type PagesCache struct {
	Pages []PageCount `json:"pages"`
}

// ReferrerCount is one entry of the top-N referrers cache payload.
type ReferrerCount struct {
	Domain string `json:"domain"`
	Count  int64  `json:"count"`
}

// ReferrersCache is the top-N referrers cache payload.
type ReferrersCache struct {
	Referrers []ReferrerCount `json:"referrers"`
}

// HoursCache is the 24-bucket hourly-traffic cache payload.
type HoursCache struct {
	Hourly   map[string]int64 `json:"hourly"`
	PeakHour string           `json:"peak_hour"`
	Total    int64            `json:"total"`
}

// BuildStatsCache reads the STATS# rollup row for each date and aggregates
// total requests and the union of unique client IPs (§4.7).
func (b *Builder) BuildStatsCache(ctx context.Context, domain string, dates []string) StatsCache {
	daily := make(map[string]int64, len(dates))
	var total int64
	uniqueIPs := make(map[string]struct{})

	for _, date := range dates {
		item, err := b.client.GetItem(ctx, b.table, schema.StatsKey(domain, date))
		if err != nil {
			b.logger.Warn().Err(err).Str("domain", domain).Str("date", date).Msg("failed to get stats rollup")
			daily[date] = 0
			continue
		}
		if item == nil {
			daily[date] = 0
			continue
		}
		count := store.GetNumber(item, "requests")
		daily[date] = count
		total += count
		for _, ip := range store.GetStringSet(item, "unique_ips") {
			uniqueIPs[ip] = struct{}{}
		}
	}

	return StatsCache{TotalRequests: total, UniqueVisitors: len(uniqueIPs), Daily: daily}
}

// BuildPagesCache aggregates PAGE# rollup rows across dates and returns the
// top-N paths by request count (§4.7).
func (b *Builder) BuildPagesCache(ctx context.Context, domain string, dates []string) PagesCache {
	counts := make(map[string]int64)
	for _, date := range dates {
		prefix := "PAGE#" + date + "#"
		items, err := b.client.QueryAllPartition(ctx, b.table, store.QueryOpts{
			PKAttr: "PK", PKValue: schema.RollupPK(domain),
			SKAttr: "SK", SKBeginsWith: prefix,
		})
		if err != nil {
			b.logger.Warn().Err(err).Str("domain", domain).Str("date", date).Msg("failed to get page rollups")
			continue
		}
		for _, item := range items {
			sk := store.GetString(item, "SK")
			path, ok := schema.ParseRollupSK(sk, prefix)
			if !ok {
				continue
			}
			counts[path] += store.GetNumber(item, "count")
		}
	}

	return PagesCache{Pages: topCounts(counts, topN, func(k string, c int64) PageCount {
		return PageCount{Path: k, Count: c}
	})}
}

// BuildReferrersCache aggregates REF# rollup rows across dates and returns
// the top-N referrer domains by request count (§4.7).
func (b *Builder) BuildReferrersCache(ctx context.Context, domain string, dates []string) ReferrersCache {
	counts := make(map[string]int64)
	for _, date := range dates {
		prefix := "REF#" + date + "#"
		items, err := b.client.QueryAllPartition(ctx, b.table, store.QueryOpts{
			PKAttr: "PK", PKValue: schema.RollupPK(domain),
			SKAttr: "SK", SKBeginsWith: prefix,
		})
		if err != nil {
			b.logger.Warn().Err(err).Str("domain", domain).Str("date", date).Msg("failed to get referrer rollups")
			continue
		}
		for _, item := range items {
			sk := store.GetString(item, "SK")
			refDomain, ok := schema.ParseRollupSK(sk, prefix)
			if !ok {
				continue
			}
			counts[refDomain] += store.GetNumber(item, "count")
		}
	}

	return ReferrersCache{Referrers: topCounts(counts, topN, func(k string, c int64) ReferrerCount {
		return ReferrerCount{Domain: k, Count: c}
	})}
}

// BuildHoursCache aggregates HOUR# rollup rows across dates into the 24
// zero-padded hour buckets, deriving peak_hour (argmax) and total (sum) (§4.7).
func (b *Builder) BuildHoursCache(ctx context.Context, domain string, dates []string) HoursCache {
	hourly := make(map[string]int64, 24)
	for h := 0; h < 24; h++ {
		hourly[fmt.Sprintf("%02d", h)] = 0
	}

	for _, date := range dates {
		prefix := "HOUR#" + date + "#"
		items, err := b.client.QueryAllPartition(ctx, b.table, store.QueryOpts{
			PKAttr: "PK", PKValue: schema.RollupPK(domain),
			SKAttr: "SK", SKBeginsWith: prefix,
		})
		if err != nil {
			b.logger.Warn().Err(err).Str("domain", domain).Str("date", date).Msg("failed to get hourly rollups")
			continue
		}
		for _, item := range items {
			sk := store.GetString(item, "SK")
			hour, ok := schema.ParseRollupSK(sk, prefix)
			if !ok {
				continue
			}
			if _, known := hourly[hour]; !known {
				continue
			}
			hourly[hour] += store.GetNumber(item, "count")
		}
	}

	peakHour, total := peakAndTotal(hourly)
	return HoursCache{Hourly: hourly, PeakHour: peakHour, Total: total}
}

// peakAndTotal derives the argmax hour bucket and the sum across all 24
// hours (§4.7: "peak_hour = argmax, total = sum"). Ties favor the
// lower-numbered hour, matching the original handler's dict-iteration order.
func peakAndTotal(hourly map[string]int64) (peakHour string, total int64) {
	peakHour = "00"
	peakCount := int64(-1)
	for h := 0; h < 24; h++ {
		hour := fmt.Sprintf("%02d", h)
		count := hourly[hour]
		total += count
		if count > peakCount {
			peakCount = count
			peakHour = hour
		}
	}
	return peakHour, total
}

// BuildAndWriteAll builds all four cache types for domain over the last
// dateRangeDays UTC days and writes each as a cache row (§4.7).
func (b *Builder) BuildAndWriteAll(ctx context.Context, domain string, now time.Time) error {
	dates := DateRange(now, dateRangeDays)
	fromDate, toDate := dates[0], dates[len(dates)-1]

	stats := b.BuildStatsCache(ctx, domain, dates)
	if err := b.writeCache(ctx, domain, "stats", stats, fromDate, toDate, now); err != nil {
		return err
	}

	pages := b.BuildPagesCache(ctx, domain, dates)
	if err := b.writeCache(ctx, domain, "pages", pages, fromDate, toDate, now); err != nil {
		return err
	}

	referrers := b.BuildReferrersCache(ctx, domain, dates)
	if err := b.writeCache(ctx, domain, "referrers", referrers, fromDate, toDate, now); err != nil {
		return err
	}

	hours := b.BuildHoursCache(ctx, domain, dates)
	if err := b.writeCache(ctx, domain, "hours", hours, fromDate, toDate, now); err != nil {
		return err
	}

	b.logger.Info().Str("domain", domain).Msg("cache built")
	return nil
}

func (b *Builder) writeCache(ctx context.Context, domain, cacheType string, payload interface{}, fromDate, toDate string, now time.Time) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s cache for %s: %w", cacheType, domain, err)
	}
	item := schema.CacheItem(domain, cacheType, data, fromDate, toDate, now)
	if err := b.client.PutItem(ctx, b.table, item); err != nil {
		return fmt.Errorf("write %s cache for %s: %w", cacheType, domain, err)
	}
	return nil
}

// topCounts sorts a count map descending by value and returns the top n
// entries, mapped through build.
func topCounts[T any](counts map[string]int64, n int, build func(key string, count int64) T) []T {
	type kv struct {
		key   string
		count int64
	}
	sorted := make([]kv, 0, len(counts))
	for k, c := range counts {
		sorted = append(sorted, kv{key: k, count: c})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].key < sorted[j].key
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make([]T, 0, len(sorted))
	for _, e := range sorted {
		out = append(out, build(e.key, e.count))
	}
	return out
}

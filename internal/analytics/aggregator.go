package analytics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/siddham-jain/msme-mitr-sub000/internal/store"
)

const (
	cachePrefix    = "analytics:"
	topSchemeLimit = 10
)

// Bucket is one slice of a distribution.
type Bucket struct {
	Name    string  `json:"name"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// SchemeCount aggregates interest in one scheme across users.
type SchemeCount struct {
	SchemeName string         `json:"scheme_name"`
	Users      int            `json:"users"`
	Mentions   int            `json:"mentions"`
	Levels     map[string]int `json:"levels"`
}

// DayCount is one point of the daily extraction trend.
type DayCount struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}

// Summary is the aggregated analytics view for one filter.
type Summary struct {
	TotalExtractions int           `json:"total_extractions"`
	UniqueUsers      int           `json:"unique_users"`
	UniqueLocations  int           `json:"unique_locations"`
	UniqueIndustries int           `json:"unique_industries"`
	TopSchemes       []SchemeCount `json:"top_schemes"`
	Locations        []Bucket      `json:"locations"`
	Industries       []Bucket      `json:"industries"`
	BusinessSizes    []Bucket      `json:"business_sizes"`
	Languages        []Bucket      `json:"languages"`
	DailyTrend       []DayCount    `json:"daily_trend"`
}

// Aggregator computes summaries over the attribute and interest stores,
// caching results per filter until a store invalidates the analytics prefix.
type Aggregator struct {
	attributes store.AttributeStore
	interests  store.InterestStore
	cache      Cache
	logger     *slog.Logger
}

func NewAggregator(attributes store.AttributeStore, interests store.InterestStore, cache Cache, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		attributes: attributes,
		interests:  interests,
		cache:      cache,
		logger:     logger,
	}
}

// Summary returns the aggregated view for the filter, served from cache when
// a fresh entry exists.
func (a *Aggregator) Summary(ctx context.Context, f store.Filter) (*Summary, error) {
	key := summaryKey(f)
	if a.cache != nil {
		if cached, ok := a.cache.Get(key); ok {
			if s, ok := cached.(*Summary); ok {
				return s, nil
			}
		}
	}

	attrs, err := a.attributes.AttributesInRange(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("load attributes: %w", err)
	}
	summary := a.compute(ctx, attrs)
	if a.cache != nil {
		a.cache.Set(key, summary)
	}
	return summary, nil
}

// Attributes is the paginated raw listing behind the reporting API.
func (a *Aggregator) Attributes(ctx context.Context, f store.Filter, p store.Page) ([]store.UserAttribute, int, error) {
	return a.attributes.ListAttributes(ctx, f, p)
}

// Interests is the paginated raw interest listing.
func (a *Aggregator) Interests(ctx context.Context, p store.Page) ([]store.SchemeInterest, int, error) {
	return a.interests.ListInterests(ctx, p)
}

func (a *Aggregator) compute(ctx context.Context, attrs []store.UserAttribute) *Summary {
	s := &Summary{TotalExtractions: len(attrs)}

	users := make(map[uuid.UUID]bool)
	locations := make(map[string]int)
	industries := make(map[string]int)
	sizes := make(map[string]int)
	languages := make(map[string]int)
	daily := make(map[string]int)
	for _, attr := range attrs {
		users[attr.UserID] = true
		if attr.Location != "" {
			locations[attr.Location]++
		}
		if attr.Industry != "" {
			industries[attr.Industry]++
		}
		if attr.BusinessSize != "" {
			sizes[string(attr.BusinessSize)]++
		}
		for _, lang := range attr.DetectedLanguages {
			languages[lang]++
		}
		daily[attr.CreatedAt.Format("2006-01-02")]++
	}
	s.UniqueUsers = len(users)
	s.UniqueLocations = len(locations)
	s.UniqueIndustries = len(industries)
	s.Locations = buckets(locations, len(attrs))
	s.Industries = buckets(industries, len(attrs))
	s.BusinessSizes = buckets(sizes, len(attrs))
	s.Languages = buckets(languages, len(attrs))
	s.DailyTrend = trend(daily)
	s.TopSchemes = a.topSchemes(ctx, users)
	return s
}

func (a *Aggregator) topSchemes(ctx context.Context, users map[uuid.UUID]bool) []SchemeCount {
	if len(users) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	interests, err := a.interests.InterestsByUsers(ctx, ids)
	if err != nil {
		// The summary is still useful without the scheme breakdown.
		a.logger.Error("failed to load scheme interests for summary", "error", err)
		return nil
	}

	byScheme := make(map[string]*SchemeCount)
	for _, in := range interests {
		sc, ok := byScheme[in.SchemeName]
		if !ok {
			sc = &SchemeCount{SchemeName: in.SchemeName, Levels: make(map[string]int)}
			byScheme[in.SchemeName] = sc
		}
		sc.Users++
		sc.Mentions += in.MentionCount
		sc.Levels[string(in.InterestLevel)]++
	}

	out := make([]SchemeCount, 0, len(byScheme))
	for _, sc := range byScheme {
		out = append(out, *sc)
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].Users != out[k].Users {
			return out[i].Users > out[k].Users
		}
		return out[i].SchemeName < out[k].SchemeName
	})
	if len(out) > topSchemeLimit {
		out = out[:topSchemeLimit]
	}
	return out
}

func buckets(counts map[string]int, total int) []Bucket {
	if len(counts) == 0 {
		return nil
	}
	out := make([]Bucket, 0, len(counts))
	for name, count := range counts {
		pct := 0.0
		if total > 0 {
			pct = math.Round(float64(count)/float64(total)*1000) / 10
		}
		out = append(out, Bucket{Name: name, Count: count, Percent: pct})
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].Count != out[k].Count {
			return out[i].Count > out[k].Count
		}
		return out[i].Name < out[k].Name
	})
	return out
}

func trend(daily map[string]int) []DayCount {
	if len(daily) == 0 {
		return nil
	}
	out := make([]DayCount, 0, len(daily))
	for date, count := range daily {
		out = append(out, DayCount{Date: date, Count: count})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Date < out[k].Date })
	return out
}

// summaryKey hashes the filter into a stable cache key under the analytics
// prefix. encoding/json emits struct fields in declaration order, so equal
// filters always hash equal.
func summaryKey(f store.Filter) string {
	raw, _ := json.Marshal(f)
	sum := sha256.Sum256(raw)
	return cachePrefix + "summary:" + hex.EncodeToString(sum[:8])
}

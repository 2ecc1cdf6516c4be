// Package search builds the per-topic SearchIntelligence record from a
// real search-volume provider and a rank-tracking provider.
//
// Demand is derived only from search volume. Rank-tracking rows describe
// where the client's site already ranks and feed position context only.
package search

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable means a provider is not configured or its breaker is open.
var ErrUnavailable = errors.New("search provider unavailable")

// KeywordData is a search-volume provider's answer for one keyword.
type KeywordData struct {
	Keyword    string   `json:"keyword"`
	Volume     int      `json:"volume"`
	Difficulty *float64 `json:"difficulty,omitempty"` // 0-100
}

// VolumeProvider looks up real search volume. A keyword the provider has no
// data for returns (nil, nil).
type VolumeProvider interface {
	Name() string
	KeywordData(ctx context.Context, keyword string) (*KeywordData, error)
}

// DateRange bounds a rank-tracking query. Both ends are inclusive days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// LastDays returns the range of n days ending at now.
func LastDays(now time.Time, n int) DateRange {
	return DateRange{Start: now.AddDate(0, 0, -n), End: now}
}

// RankRow is one rank-tracking row.
type RankRow struct {
	Query       string  `json:"query"`
	Impressions int     `json:"impressions"`
	Clicks      int     `json:"clicks"`
	CTR         float64 `json:"ctr"`
	Position    float64 `json:"position"`
}

// RankProvider queries rank-tracking data for a site.
type RankProvider interface {
	Name() string
	Query(ctx context.Context, siteURL string, dr DateRange, dimensions []string) ([]RankRow, error)
}

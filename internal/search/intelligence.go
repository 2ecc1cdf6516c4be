package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/abelbrown/viralengine/internal/correlation"
	"github.com/abelbrown/viralengine/internal/logging"
	"github.com/abelbrown/viralengine/internal/metrics"
	"github.com/abelbrown/viralengine/internal/model"
)

const (
	// DefaultDateRangeDays is the rank-tracking lookback.
	DefaultDateRangeDays = 28

	// maxVolumeKeywords bounds the volume lookups per topic besides the
	// topic itself.
	maxVolumeKeywords = 3
)

// AdapterConfig configures an Adapter.
type AdapterConfig struct {
	DateRangeDays int
}

// Adapter builds SearchIntelligence records. Either provider may be nil;
// missing or failing providers degrade to "no data" and never fail a build.
type Adapter struct {
	volume    VolumeProvider
	rank      RankProvider
	rangeDays int
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewAdapter creates an Adapter. Pass a nil interface for an absent provider.
func NewAdapter(volume VolumeProvider, rank RankProvider, cfg AdapterConfig, m *metrics.Metrics) *Adapter {
	if cfg.DateRangeDays <= 0 {
		cfg.DateRangeDays = DefaultDateRangeDays
	}
	return &Adapter{
		volume:    volume,
		rank:      rank,
		rangeDays: cfg.DateRangeDays,
		metrics:   metrics.OrNop(m),
		now:       time.Now,
	}
}

// Build merges volume and rank-tracking data for a topic. client may be nil.
func (a *Adapter) Build(ctx context.Context, keywords []string, topic string, client *model.ClientContext) model.SearchIntelligence {
	si := model.NoSearchData()
	si.Intent = ClassifyIntent(topic + " " + strings.Join(keywords, " "))

	if best := a.lookupVolume(ctx, keywords, topic); best != nil {
		vol := best.Volume
		si.HasData = true
		si.DataSources.RealVolume = true
		si.SearchVolume = &vol
		si.KeywordDifficulty = best.Difficulty
		si.PrimaryKeyword = best.Keyword
		si.DemandLevel = DemandFromVolume(vol)
	}
	si.OpportunityType = OpportunityTypeFor(si.DemandLevel)

	if client != nil && client.SiteURL != "" {
		if rows := a.lookupRank(ctx, keywords, client.SiteURL); len(rows) > 0 {
			si.HasData = true
			si.DataSources.RankTracking = true
			var top RankRow
			for _, r := range rows {
				si.TotalImpressions += r.Impressions
				si.TotalClicks += r.Clicks
				if r.Position > 0 && (si.BestPosition == nil || r.Position < *si.BestPosition) {
					pos := r.Position
					si.BestPosition = &pos
				}
				if r.Impressions > top.Impressions {
					top = r
				}
			}
			if si.PrimaryKeyword == "" {
				si.PrimaryKeyword = top.Query
			}
		}
	}

	return si
}

// volumeCandidates is the topic followed by the first keywords, deduped.
func volumeCandidates(keywords []string, topic string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	add(topic)
	for i, k := range keywords {
		if i >= maxVolumeKeywords {
			break
		}
		add(k)
	}
	return out
}

// lookupVolume returns the highest-volume answer among the candidates.
func (a *Adapter) lookupVolume(ctx context.Context, keywords []string, topic string) *KeywordData {
	if a.volume == nil {
		return nil
	}
	var best *KeywordData
	for _, kw := range volumeCandidates(keywords, topic) {
		start := time.Now()
		data, err := a.volume.KeywordData(ctx, kw)
		a.metrics.ObserveCall(a.volume.Name(), start, err)
		if err != nil {
			if errors.Is(err, ErrUnavailable) || ctx.Err() != nil {
				logging.Debug("volume provider unavailable", "provider", a.volume.Name(), "error", err)
				return best
			}
			logging.Warn("volume lookup failed", "provider", a.volume.Name(), "keyword", kw, "error", err)
			continue
		}
		if data == nil {
			continue
		}
		if data.Keyword == "" {
			data.Keyword = kw
		}
		if best == nil || data.Volume > best.Volume {
			best = data
		}
	}
	return best
}

// lookupRank returns the rank rows whose query mentions any keyword.
func (a *Adapter) lookupRank(ctx context.Context, keywords []string, siteURL string) []RankRow {
	if a.rank == nil || len(keywords) == 0 {
		return nil
	}
	start := time.Now()
	rows, err := a.rank.Query(ctx, siteURL, LastDays(a.now(), a.rangeDays), []string{"query"})
	a.metrics.ObserveCall(a.rank.Name(), start, err)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			logging.Debug("rank tracking unavailable", "provider", a.rank.Name(), "error", err)
		} else {
			logging.Warn("rank tracking failed", "provider", a.rank.Name(), "site", siteURL, "error", err)
		}
		return nil
	}

	var matched []RankRow
	for _, r := range rows {
		q := strings.ToLower(r.Query)
		for _, k := range keywords {
			if correlation.ContainsWord(q, strings.ToLower(k)) {
				matched = append(matched, r)
				break
			}
		}
	}
	return matched
}

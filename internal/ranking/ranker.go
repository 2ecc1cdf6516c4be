// Package ranking computes the viral score of a cluster.
//
// Each axis is a stateless Ranker: (cluster, context) -> points within the
// axis bounds. Score sums the five axes into a ScoreBreakdown whose Total is
// the viral score.
package ranking

import (
	"strings"
	"time"

	"github.com/abelbrown/viralengine/internal/model"
)

// DefaultSeasonality is the placeholder seasonality score used until a
// seasonal calendar feed exists.
const DefaultSeasonality = 5.0

// Ranker scores one axis of a cluster.
// Implementations should be stateless and thread-safe.
type Ranker interface {
	// Name returns a unique identifier for this ranker
	Name() string

	// Score returns points within the ranker's bounds
	Score(c model.Cluster, ctx *Context) float64

	// Max is the upper bound of Score
	Max() float64
}

// Context provides data rankers may need for scoring decisions.
type Context struct {
	Now time.Time

	// IndustryKeywords are matched against cluster keywords for relevance.
	// Lowercased.
	IndustryKeywords []string

	Seasonality float64
}

// NewContext creates a context for scoring at now.
func NewContext(now time.Time, industryKeywords []string) *Context {
	kw := make([]string, 0, len(industryKeywords))
	for _, k := range industryKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kw = append(kw, k)
		}
	}
	return &Context{Now: now, IndustryKeywords: kw, Seasonality: DefaultSeasonality}
}

// WithSeasonality overrides the seasonality placeholder.
func (c *Context) WithSeasonality(v float64) *Context {
	c.Seasonality = v
	return c
}

// Axes returns the five viral rankers in breakdown order.
func Axes() []Ranker {
	return []Ranker{
		EngagementRanker{},
		FreshnessRanker{},
		RelevanceRanker{},
		NoveltyRanker{},
		SeasonalityRanker{},
	}
}

// Score computes the five-axis breakdown of a cluster. breakdown.Total() is
// the viral score.
func Score(c model.Cluster, ctx *Context) model.ScoreBreakdown {
	return model.ScoreBreakdown{
		Engagement:  EngagementRanker{}.Score(c, ctx),
		Freshness:   FreshnessRanker{}.Score(c, ctx),
		Relevance:   RelevanceRanker{}.Score(c, ctx),
		Novelty:     NoveltyRanker{}.Score(c, ctx),
		Seasonality: SeasonalityRanker{}.Score(c, ctx),
	}
}

// Momentum summarises how hot a cluster is right now, in [0,1]: 60% from
// freshness share, 40% from engagement share.
func Momentum(b model.ScoreBreakdown) float64 {
	m := 0.6*(b.Freshness/freshnessMax) + 0.4*(b.Engagement/engagementMax)
	return clamp(m, 0, 1)
}

// SearchDemandScore rates real search demand 0-100. It returns nil unless
// the record is backed by search-volume data; rank-tracking numbers never
// contribute.
func SearchDemandScore(si model.SearchIntelligence) *float64 {
	if !si.HasVolumeData() {
		return nil
	}
	volume := clamp(log10p1(float64(*si.SearchVolume))*17.5, 0, 70)
	ease := 15.0
	if si.KeywordDifficulty != nil {
		ease = clamp((100-*si.KeywordDifficulty)*0.3, 0, 30)
	}
	score := round1(clamp(volume+ease, 0, 100))
	return &score
}

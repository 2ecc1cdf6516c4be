package ranking

import (
	"math"
	"strings"

	"github.com/abelbrown/viralengine/internal/model"
)

const (
	engagementMax  = 30.0
	freshnessMax   = 20.0
	relevanceMax   = 25.0
	noveltyMax     = 15.0
	seasonalityMax = 10.0

	relevancePerMatch   = 8.0
	noveltyPerCommunity = 5.0
	noveltyFloor        = 5.0
	noveltyRatioScale   = 50.0
	freshnessHourStep   = 12.0
)

// EngagementRanker scores average upvotes and comments on a log scale so a
// single outlier cannot saturate the axis.
type EngagementRanker struct{}

func (EngagementRanker) Name() string { return "engagement" }
func (EngagementRanker) Max() float64 { return engagementMax }

func (EngagementRanker) Score(c model.Cluster, _ *Context) float64 {
	if len(c.Signals) == 0 {
		return 0
	}
	var up, com float64
	for _, s := range c.Signals {
		up += float64(max(s.Metrics.Upvotes, 0))
		com += float64(max(s.Metrics.Comments, 0))
	}
	n := float64(len(c.Signals))
	score := log10p1(up/n)*5 + log10p1(com/n)*3
	return round1(math.Min(engagementMax, score))
}

// FreshnessRanker loses one point per 12 hours of mean signal age.
type FreshnessRanker struct{}

func (FreshnessRanker) Name() string { return "freshness" }
func (FreshnessRanker) Max() float64 { return freshnessMax }

func (FreshnessRanker) Score(c model.Cluster, ctx *Context) float64 {
	if len(c.Signals) == 0 {
		return 0
	}
	var hours float64
	for _, s := range c.Signals {
		age := ctx.Now.Sub(s.ObservedAt()).Hours()
		if age < 0 {
			age = 0 // future-dated posts count as brand new
		}
		hours += age
	}
	mean := hours / float64(len(c.Signals))
	return round1(clamp(freshnessMax-mean/freshnessHourStep, 0, freshnessMax))
}

// RelevanceRanker awards points per cluster keyword that contains an
// industry keyword.
type RelevanceRanker struct{}

func (RelevanceRanker) Name() string { return "relevance" }
func (RelevanceRanker) Max() float64 { return relevanceMax }

func (RelevanceRanker) Score(c model.Cluster, ctx *Context) float64 {
	if ctx == nil || len(ctx.IndustryKeywords) == 0 {
		return 0
	}
	var score float64
	for _, kw := range c.Keywords {
		for _, ik := range ctx.IndustryKeywords {
			if strings.Contains(kw, ik) {
				score += relevancePerMatch
				break
			}
		}
	}
	return math.Min(relevanceMax, score)
}

// NoveltyRanker rewards discussion. Single signals are scored by their
// comment-to-upvote ratio; multi-signal clusters by community spread.
type NoveltyRanker struct{}

func (NoveltyRanker) Name() string { return "novelty" }
func (NoveltyRanker) Max() float64 { return noveltyMax }

func (NoveltyRanker) Score(c model.Cluster, _ *Context) float64 {
	switch len(c.Signals) {
	case 0:
		return 0
	case 1:
		m := c.Signals[0].Metrics
		ratio := 0.0
		if m.Upvotes > 0 {
			ratio = float64(m.Comments) / float64(m.Upvotes)
		}
		return round1(math.Min(noveltyMax, ratio*noveltyRatioScale+noveltyFloor))
	default:
		communities := len(c.Communities())
		if communities == 0 {
			communities = 1
		}
		return math.Min(noveltyMax, float64(communities)*noveltyPerCommunity)
	}
}

// SeasonalityRanker returns the configured placeholder.
type SeasonalityRanker struct{}

func (SeasonalityRanker) Name() string { return "seasonality" }
func (SeasonalityRanker) Max() float64 { return seasonalityMax }

func (SeasonalityRanker) Score(_ model.Cluster, ctx *Context) float64 {
	if ctx == nil {
		return DefaultSeasonality
	}
	return clamp(ctx.Seasonality, 0, seasonalityMax)
}

func log10p1(v float64) float64 {
	if v < 0 {
		v = 0
	}
	return math.Log10(v + 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

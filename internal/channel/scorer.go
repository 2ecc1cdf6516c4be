// Package channel converts a cluster's viral score, search intelligence and
// gate results into per-channel viability scores.
package channel

import (
	"fmt"
	"math"

	"github.com/abelbrown/viralengine/internal/model"
)

const (
	// ExceptionalEngagement lets a viral topic bypass the blog's low-demand
	// block.
	ExceptionalEngagement = 5000

	// ViableThreshold is the minimum total for any channel to be viable.
	ViableThreshold = 30.0

	blogMax   = 100.0
	videoMax  = 100.0
	socialMax = 100.0
)

// Input is everything the scorer needs for one cluster.
type Input struct {
	ViralScore float64 // 0-100
	Momentum   float64 // 0-1
	Engagement int     // summed upvotes + comments
	Search     model.SearchIntelligence
	Gates      model.StrategicGates
}

// Score computes all three channel scores and the recommendation. It is a
// pure function of its input.
func Score(in Input) model.ChannelScores {
	cs := model.ChannelScores{
		Blog:   blog(in),
		Video:  video(in),
		Social: social(in),
	}
	cs.RecommendedChannel, cs.Recommendation = recommend(cs, in)
	return cs
}

func blog(in Input) model.ChannelScore {
	si := in.Search
	var notes []string
	exceptional := in.Engagement > ExceptionalEngagement
	blocked := si.HasVolumeData() && si.DemandLevel == model.DemandLow && !exceptional

	var demand float64
	switch si.DemandLevel {
	case model.DemandHigh:
		demand = 35
	case model.DemandMedium:
		demand = 25
	case model.DemandLow:
		demand = 8
	default:
		demand = 15
		notes = append(notes, "no search volume data")
	}

	var kdPenalty float64
	if si.KeywordDifficulty != nil {
		switch kd := *si.KeywordDifficulty; {
		case kd >= 70:
			kdPenalty = -10
		case kd >= 50:
			kdPenalty = -5
		case kd >= 30:
			kdPenalty = -2
		}
	}

	position := 5.0
	if si.BestPosition != nil && *si.BestPosition > 0 {
		switch p := *si.BestPosition; {
		case p >= 4 && p <= 10:
			position = 25
			notes = append(notes, fmt.Sprintf("quick win: ranking #%.0f", p))
		case p < 4:
			position = 20
		case p <= 20:
			position = 15
		case p <= 50:
			position = 8
		default:
			position = 0
		}
	}

	viral := clamp(in.ViralScore, 0, 100) * 0.2
	total := clamp(demand+kdPenalty+position+viral+fitBonus(in.Gates, 20, 10), 0, blogMax)

	if blocked {
		notes = append(notes, "blocked: search data confirms low demand")
	}
	if exceptional && si.DemandLevel == model.DemandLow {
		notes = append(notes, "exceptional engagement overrides low demand")
	}

	return model.ChannelScore{
		Score:  round1(total),
		Viable: !blocked && total >= ViableThreshold,
		Notes:  notes,
	}
}

func video(in Input) model.ChannelScore {
	viral := clamp(in.ViralScore, 0, 100) * 0.3 * (0.5 + 0.5*clamp(in.Momentum, 0, 1))
	if in.Search.TrendDirection == model.TrendRising {
		viral += 10
	}
	viral = math.Min(viral, 40)

	var appeal float64
	switch e := in.Engagement; {
	case e >= 5000:
		appeal = 25
	case e >= 1000:
		appeal = 20
	case e >= 250:
		appeal = 15
	case e >= 50:
		appeal = 10
	default:
		appeal = 5
	}

	var tailwind float64
	switch in.Search.DemandLevel {
	case model.DemandHigh:
		tailwind = 17
	case model.DemandMedium:
		tailwind = 10
	case model.DemandLow:
		tailwind = 0
	default:
		tailwind = 5
	}

	total := clamp(viral+appeal+tailwind+fitBonus(in.Gates, 17, 8), 0, videoMax)
	return model.ChannelScore{Score: round1(total), Viable: total >= ViableThreshold}
}

func social(in Input) model.ChannelScore {
	viral := clamp(in.ViralScore, 0, 100) * 0.35 * (0.4 + 0.6*clamp(in.Momentum, 0, 1))
	if in.Search.TrendDirection == model.TrendRising {
		viral += 10
	}
	viral = math.Min(viral, 45)

	var format float64
	switch e := in.Engagement; {
	case e >= 2000:
		format = 25
	case e >= 500:
		format = 18
	case e >= 100:
		format = 12
	default:
		format = 6
	}

	var trend float64
	switch in.Search.TrendDirection {
	case model.TrendRising:
		trend = 15
	case model.TrendDeclining:
		trend = 0
	default:
		trend = 8
	}

	total := clamp(viral+format+trend+fitBonus(in.Gates, 15, 7), 0, socialMax)
	return model.ChannelScore{Score: round1(total), Viable: total >= ViableThreshold}
}

func fitBonus(g model.StrategicGates, passed, otherwise float64) float64 {
	if g.AllPassed {
		return passed
	}
	return otherwise
}

// recommend picks the highest-scoring viable channel; ties go to the
// earlier channel in blog, video, social order. Video is the default.
func recommend(cs model.ChannelScores, in Input) (model.Channel, string) {
	best := model.Channel("")
	bestScore := -1.0
	for _, ch := range model.AllChannels {
		s := cs.For(ch)
		if s.Viable && s.Score > bestScore {
			best, bestScore = ch, s.Score
		}
	}

	if best == "" {
		return model.ChannelVideo, "no channel clears the viability bar; video is the lowest-risk test"
	}

	lowDemand := in.Search.HasVolumeData() && in.Search.DemandLevel == model.DemandLow
	switch best {
	case model.ChannelBlog:
		if in.Search.DemandLevel == model.DemandHigh || in.Search.DemandLevel == model.DemandMedium {
			return best, fmt.Sprintf("%s search demand: lead with a blog post", in.Search.DemandLevel)
		}
		if lowDemand {
			return best, "exceptional engagement justifies a blog post despite low search demand"
		}
		return best, "blog scores highest"
	case model.ChannelSocial:
		if lowDemand {
			return best, "low search demand: lead with social"
		}
		return best, "trend-driven topic: lead with social"
	default:
		if lowDemand {
			return best, "low search demand: lead with video"
		}
		return best, "viral topic: lead with video"
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

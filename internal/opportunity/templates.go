package opportunity

import (
	"fmt"
	"strings"

	"github.com/abelbrown/viralengine/internal/model"
)

// lead returns the highest-engagement signal of a cluster.
func lead(c model.Cluster) model.Signal {
	var best model.Signal
	bestEng := -1
	for _, s := range c.Signals {
		if e := s.Metrics.Engagement(); e > bestEng {
			best, bestEng = s, e
		}
	}
	return best
}

func focus(c model.Cluster, si model.SearchIntelligence) string {
	if si.PrimaryKeyword != "" {
		return si.PrimaryKeyword
	}
	if len(c.Keywords) > 0 {
		n := min(3, len(c.Keywords))
		return strings.Join(c.Keywords[:n], " ")
	}
	return c.Topic()
}

func where(c model.Cluster) string {
	comms := c.Communities()
	switch len(comms) {
	case 0:
		return "online"
	case 1:
		return "in " + comms[0]
	default:
		return fmt.Sprintf("across %d communities", len(comms))
	}
}

func angle(c model.Cluster, ch model.Channel, si model.SearchIntelligence) string {
	f := focus(c, si)
	switch ch {
	case model.ChannelBlog:
		if si.OpportunityType == model.DemandCapture {
			return fmt.Sprintf("Definitive guide to %s, answering the questions people are already searching", f)
		}
		return fmt.Sprintf("Point of view on %s: what the conversation %s gets right and wrong", f, where(c))
	case model.ChannelVideo:
		return fmt.Sprintf("Explainer: why %s is blowing up %s right now", f, where(c))
	default:
		return fmt.Sprintf("Hot take on %s, built from the strongest reactions %s", f, where(c))
	}
}

func hook(c model.Cluster, ch model.Channel) string {
	s := lead(c)
	title := strings.TrimSpace(s.Title)
	if title == "" {
		title = c.Topic()
	}
	switch ch {
	case model.ChannelVideo:
		return fmt.Sprintf("%d people reacted to this: %q. Here's what's really going on.", s.Metrics.Engagement(), title)
	case model.ChannelSocial:
		return fmt.Sprintf("%q is everywhere this week. Our take:", title)
	default:
		if len(c.Signals) > 1 {
			return fmt.Sprintf("%d separate threads are asking the same thing: %q", len(c.Signals), title)
		}
		return fmt.Sprintf("Everyone is talking about %q. Here's the full picture.", title)
	}
}

func reasoning(b model.ScoreBreakdown, seo *model.SEOData, ch model.Channel) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("Viral score %.0f (engagement %.1f, freshness %.1f, relevance %.1f, novelty %.1f, seasonality %.1f).",
		b.Total(), b.Engagement, b.Freshness, b.Relevance, b.Novelty, b.Seasonality))

	si := seo.SearchIntelligence
	switch {
	case si.HasVolumeData():
		parts = append(parts, fmt.Sprintf("Search volume %d/mo, %s demand (%s).", *si.SearchVolume, si.DemandLevel, si.OpportunityType))
	case si.HasData:
		parts = append(parts, "Rank tracking data only; demand unknown.")
	default:
		parts = append(parts, "No search data; treat as a demand creation play.")
	}

	if seo.Gates.AllPassed {
		parts = append(parts, "All strategic gates passed.")
	} else if seo.Gates.BlockedBy != "" {
		parts = append(parts, "Gate warning: "+seo.Gates.BlockedBy+".")
	}

	cs := seo.ChannelScores.For(ch)
	parts = append(parts, fmt.Sprintf("%s score %.0f. %s.", ch, cs.Score, capitalize(seo.ChannelScores.Recommendation)))
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

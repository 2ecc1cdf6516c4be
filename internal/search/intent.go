package search

import (
	"strings"

	"github.com/abelbrown/viralengine/internal/correlation"
	"github.com/abelbrown/viralengine/internal/model"
)

var transactionalTerms = []string{
	"buy", "price", "pricing", "cost", "cheap", "discount", "coupon", "deal",
	"order", "hire", "subscribe", "download", "trial", "quote", "sign up",
}

var commercialTerms = []string{
	"best", "top", "vs", "versus", "review", "reviews", "compare", "comparison",
	"alternative", "alternatives", "tool", "tools", "software", "platform", "agency",
}

// ClassifyIntent assigns a coarse search intent by keyword patterns.
// Transactional wins over commercial; anything else is informational.
func ClassifyIntent(text string) model.Intent {
	text = strings.ToLower(text)
	for _, t := range transactionalTerms {
		if correlation.ContainsWord(text, t) {
			return model.IntentTransactional
		}
	}
	for _, t := range commercialTerms {
		if correlation.ContainsWord(text, t) {
			return model.IntentCommercial
		}
	}
	return model.IntentInformational
}

// Demand thresholds on monthly search volume.
const (
	HighDemandVolume   = 1000
	MediumDemandVolume = 100
)

// DemandFromVolume classifies a monthly search volume.
func DemandFromVolume(volume int) model.DemandLevel {
	switch {
	case volume >= HighDemandVolume:
		return model.DemandHigh
	case volume >= MediumDemandVolume:
		return model.DemandMedium
	default:
		return model.DemandLow
	}
}

// OpportunityTypeFor maps demand to capture (high/medium) or creation.
func OpportunityTypeFor(d model.DemandLevel) model.OpportunityType {
	if d == model.DemandHigh || d == model.DemandMedium {
		return model.DemandCapture
	}
	return model.DemandCreation
}

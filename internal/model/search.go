package model

// DemandLevel classifies real search demand. It is derived only from
// search-volume data, never from rank-tracking impressions.
type DemandLevel string

const (
	DemandHigh    DemandLevel = "high"
	DemandMedium  DemandLevel = "medium"
	DemandLow     DemandLevel = "low"
	DemandUnknown DemandLevel = "unknown"
)

// Rank orders demand levels for comparisons; unknown ranks below low.
func (d DemandLevel) Rank() int {
	switch d {
	case DemandHigh:
		return 3
	case DemandMedium:
		return 2
	case DemandLow:
		return 1
	default:
		return 0
	}
}

// OpportunityType says whether a topic captures existing demand or has to
// create it.
type OpportunityType string

const (
	DemandCapture  OpportunityType = "demand_capture"
	DemandCreation OpportunityType = "demand_creation"
)

// Intent is the coarse search intent of a topic.
type Intent string

const (
	IntentInformational Intent = "informational"
	IntentCommercial    Intent = "commercial"
	IntentTransactional Intent = "transactional"
)

// TrendDirection of a topic. Only TrendStable is produced today; the other
// values are accepted from callers that supply their own trend data.
type TrendDirection string

const (
	TrendRising    TrendDirection = "rising"
	TrendStable    TrendDirection = "stable"
	TrendDeclining TrendDirection = "declining"
)

// DataSources records which providers contributed to a SearchIntelligence.
type DataSources struct {
	RealVolume   bool `json:"realVolume"`
	RankTracking bool `json:"rankTracking"`
}

// SearchIntelligence is the per-topic search snapshot used by gates and
// channel scoring.
type SearchIntelligence struct {
	HasData           bool            `json:"hasData"`
	DataSources       DataSources     `json:"dataSources"`
	SearchVolume      *int            `json:"searchVolume,omitempty"`
	KeywordDifficulty *float64        `json:"keywordDifficulty,omitempty"`
	TotalImpressions  int             `json:"totalImpressions"`
	TotalClicks       int             `json:"totalClicks"`
	BestPosition      *float64        `json:"bestPosition,omitempty"`
	DemandLevel       DemandLevel     `json:"demandLevel"`
	OpportunityType   OpportunityType `json:"opportunityType"`
	PrimaryKeyword    string          `json:"primaryKeyword,omitempty"`
	Intent            Intent          `json:"intent"`
	TrendDirection    TrendDirection  `json:"trendDirection"`
}

// NoSearchData is the degraded record used when no provider answered.
func NoSearchData() SearchIntelligence {
	return SearchIntelligence{
		DemandLevel:     DemandUnknown,
		OpportunityType: DemandCreation,
		Intent:          IntentInformational,
		TrendDirection:  TrendStable,
	}
}

// HasVolumeData reports whether real search-volume data backs DemandLevel.
func (s SearchIntelligence) HasVolumeData() bool {
	return s.DataSources.RealVolume && s.SearchVolume != nil
}

// RankedTopTen reports whether the site already ranks on page one.
func (s SearchIntelligence) RankedTopTen() bool {
	return s.BestPosition != nil && *s.BestPosition > 0 && *s.BestPosition <= 10
}

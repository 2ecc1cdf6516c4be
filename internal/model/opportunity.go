package model

import "time"

// Channel is a content distribution channel.
type Channel string

const (
	ChannelBlog   Channel = "blog"
	ChannelVideo  Channel = "video"
	ChannelSocial Channel = "social"
)

// AllChannels in scoring tie-break order.
var AllChannels = []Channel{ChannelBlog, ChannelVideo, ChannelSocial}

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelBlog, ChannelVideo, ChannelSocial:
		return true
	}
	return false
}

// OpportunityStatus is the lifecycle state of an opportunity.
type OpportunityStatus string

const (
	StatusNew         OpportunityStatus = "new"
	StatusShortlisted OpportunityStatus = "shortlisted"
	StatusGenerated   OpportunityStatus = "generated"
	StatusArchived    OpportunityStatus = "archived"
)

var opportunityTransitions = map[OpportunityStatus][]OpportunityStatus{
	StatusNew:         {StatusShortlisted, StatusGenerated, StatusArchived},
	StatusShortlisted: {StatusGenerated, StatusArchived},
	StatusGenerated:   {StatusArchived},
}

// CanTransition reports whether an opportunity may move from s to next.
func (s OpportunityStatus) CanTransition(next OpportunityStatus) bool {
	for _, allowed := range opportunityTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ScoreBreakdown holds the five viral sub-scores.
type ScoreBreakdown struct {
	Engagement  float64 `json:"engagement"`  // 0-30
	Freshness   float64 `json:"freshness"`   // 0-20
	Relevance   float64 `json:"relevance"`   // 0-25
	Novelty     float64 `json:"novelty"`     // 0-15
	Seasonality float64 `json:"seasonality"` // 0-10
}

// Total is the viral score: the sum of the sub-scores clamped to 0-100.
func (b ScoreBreakdown) Total() float64 {
	sum := b.Engagement + b.Freshness + b.Relevance + b.Novelty + b.Seasonality
	if sum < 0 {
		return 0
	}
	if sum > 100 {
		return 100
	}
	return sum
}

// ChannelScore is the viability of one channel.
type ChannelScore struct {
	Score  float64  `json:"score"`
	Viable bool     `json:"viable"`
	Notes  []string `json:"notes,omitempty"`
}

// ChannelScores is the output of the channel scorer.
type ChannelScores struct {
	Blog               ChannelScore `json:"blog"`
	Video              ChannelScore `json:"video"`
	Social             ChannelScore `json:"social"`
	RecommendedChannel Channel      `json:"recommendedChannel"`
	Recommendation     string       `json:"recommendation"`
}

// For returns the score of a channel.
func (c ChannelScores) For(ch Channel) ChannelScore {
	switch ch {
	case ChannelBlog:
		return c.Blog
	case ChannelVideo:
		return c.Video
	default:
		return c.Social
	}
}

// SEOData is the search/strategy context stored with an opportunity.
type SEOData struct {
	SearchIntelligence SearchIntelligence `json:"searchIntelligence"`
	SearchDemandScore  *float64           `json:"searchDemandScore,omitempty"`
	Gates              StrategicGates     `json:"gates"`
	ChannelScores      ChannelScores      `json:"channelScores"`
	OpportunityType    OpportunityType    `json:"opportunityType"`
}

// Opportunity is a scored, gated, channel-specific content candidate.
type Opportunity struct {
	ID              string
	ClientID        string
	Industry        string
	Channel         Channel
	Topic           string
	Angle           string
	Hook            string
	Reasoning       string
	Score           float64
	ScoreBreakdown  ScoreBreakdown
	SourceSignalIDs []string
	Status          OpportunityStatus
	SEOData         *SEOData
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

package model

import "time"

// BriefStatus is the approval state of a canonical brief.
type BriefStatus string

const (
	BriefDraft      BriefStatus = "draft"
	BriefApproved   BriefStatus = "approved"
	BriefRejected   BriefStatus = "rejected"
	BriefSuperseded BriefStatus = "superseded"
)

// BriefContent is the creative direction produced by the generator.
type BriefContent struct {
	CoreTension string   `json:"coreTension"`
	OurAngle    string   `json:"ourAngle"`
	KeyClaim    string   `json:"keyClaim"`
	ProofPoints []string `json:"proofPoints"`
	WhyNow      string   `json:"whyNow"`
	NoGoClaims  []string `json:"noGoClaims,omitempty"`
}

// Evidence is a signal excerpt backing a brief.
type Evidence struct {
	SignalID  string    `json:"signalId"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Excerpt   string    `json:"excerpt,omitempty"`
	Community string    `json:"community,omitempty"`
	Upvotes   int       `json:"upvotes"`
	Comments  int       `json:"comments"`
	Observed  time.Time `json:"observed"`
}

// DateRange is an inclusive time span.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CanonicalBrief is the approved creative direction that authorises content
// generation.
type CanonicalBrief struct {
	ID              string
	OpportunityID   string
	ClientID        string
	SignalIDs       []string
	Content         BriefContent
	Evidence        []Evidence
	SourceDateRange DateRange
	Status          BriefStatus
	ParentID        string // brief this one regenerated
	SupersededBy    string
	ModelID         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Usage reports generator token accounting.
type Usage struct {
	InputTokens  int    `json:"inputTokens"`
	OutputTokens int    `json:"outputTokens"`
	TotalTokens  int    `json:"totalTokens"`
	ModelID      string `json:"modelId"`
}

// BriefGeneration is one versioned content artifact produced from an
// approved brief. Rows are append-only.
type BriefGeneration struct {
	ID        string
	BriefID   string
	Channel   Channel
	Version   int
	Content   string
	Usage     Usage
	CreatedAt time.Time
}

package model

// Gate names, in evaluation order.
const (
	GateIntentAlignment      = "intentAlignment"
	GateTopicalFit           = "topicalFit"
	GateCannibalization      = "cannibalization"
	GateCompetitiveViability = "competitiveViability"
)

// GateResult is the outcome of one strategic gate.
type GateResult struct {
	Passed bool   `json:"passed"`
	Reason string `json:"reason"`
	// Action is an informational recommendation: extend_cluster,
	// new_cluster, update_existing, merge, create_new.
	Action string `json:"action,omitempty"`
	// Caution marks a pass that deserves a human look.
	Caution bool `json:"caution,omitempty"`
	// Difficulty is set by the competitive viability gate: easy, medium, hard.
	Difficulty string `json:"difficulty,omitempty"`
	// MatchedURL names the existing page involved in a cannibalization check.
	MatchedURL string `json:"matchedUrl,omitempty"`
}

// StrategicGates aggregates the four gate results.
type StrategicGates struct {
	IntentAlignment      GateResult `json:"intentAlignment"`
	TopicalFit           GateResult `json:"topicalFit"`
	Cannibalization      GateResult `json:"cannibalization"`
	CompetitiveViability GateResult `json:"competitiveViability"`
	AllPassed            bool       `json:"allPassed"`
	BlockedBy            string     `json:"blockedBy,omitempty"`
}

// Ordered returns the gate results paired with their names in evaluation
// order.
func (g StrategicGates) Ordered() []NamedGate {
	return []NamedGate{
		{Name: GateIntentAlignment, Result: g.IntentAlignment},
		{Name: GateTopicalFit, Result: g.TopicalFit},
		{Name: GateCannibalization, Result: g.Cannibalization},
		{Name: GateCompetitiveViability, Result: g.CompetitiveViability},
	}
}

// NamedGate pairs a gate name with its result.
type NamedGate struct {
	Name   string
	Result GateResult
}

// ContentPage is an existing page of the client's site.
type ContentPage struct {
	URL      string   `yaml:"url" json:"url"`
	Title    string   `yaml:"title" json:"title"`
	Keywords []string `yaml:"keywords" json:"keywords,omitempty"`
	// Position is the current best rank, 0 when unknown.
	Position float64 `yaml:"position" json:"position,omitempty"`
}

// ClientContext describes the client the opportunities are built for. Every
// field is optional; absent context makes the related gate pass by default.
type ClientContext struct {
	ClientID        string        `yaml:"client_id"`
	Industry        string        `yaml:"industry"`
	SiteURL         string        `yaml:"site_url"`
	Competitors     []string      `yaml:"competitors"`
	ClusterTaxonomy []string      `yaml:"cluster_taxonomy"`
	ExistingContent []ContentPage `yaml:"existing_content"`
}

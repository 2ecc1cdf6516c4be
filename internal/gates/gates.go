// Package gates evaluates the four strategic gates a cluster must pass
// before it becomes a content opportunity.
//
// Gates are evaluated in a fixed order: intent alignment, topical fit,
// cannibalization, competitive viability. Every gate is evaluated; the first
// failure in that order is reported as BlockedBy. Missing client context
// never blocks.
package gates

import (
	"fmt"
	"sort"
	"strings"

	"github.com/abelbrown/viralengine/internal/correlation"
	"github.com/abelbrown/viralengine/internal/model"
)

// Actions recommended by the topical fit and cannibalization gates.
const (
	ActionExtendCluster  = "extend_cluster"
	ActionNewCluster     = "new_cluster"
	ActionUpdateExisting = "update_existing"
	ActionMerge          = "merge"
	ActionCreateNew      = "create_new"
)

// Difficulty levels set by the competitive viability gate.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Config holds the immutable tables the evaluator reads.
type Config struct {
	NegativeTerms []string
	Stopwords     []string
}

// Input is everything the gates look at for one cluster.
type Input struct {
	Topic    string
	Keywords []string // sorted, unique
	Signals  []model.Signal
	Search   model.SearchIntelligence

	// Industry and IndustryTerms identify mentions of the client's own
	// industry for the intent gate.
	Industry      string
	IndustryTerms []string

	Client *model.ClientContext // nil when no client context is configured
}

// Evaluator runs the strategic gates. It is safe for concurrent use.
type Evaluator struct {
	negative  []string
	stopwords map[string]bool
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(cfg Config) *Evaluator {
	neg := make([]string, 0, len(cfg.NegativeTerms))
	for _, t := range cfg.NegativeTerms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			neg = append(neg, t)
		}
	}
	return &Evaluator{negative: neg, stopwords: correlation.StopwordSet(cfg.Stopwords)}
}

// Evaluate runs all four gates.
func (e *Evaluator) Evaluate(in Input) model.StrategicGates {
	g := model.StrategicGates{
		IntentAlignment:      e.intentAlignment(in),
		TopicalFit:           e.topicalFit(in),
		Cannibalization:      e.cannibalization(in),
		CompetitiveViability: competitiveViability(in.Search),
	}

	g.AllPassed = true
	for _, ng := range g.Ordered() {
		if !ng.Result.Passed {
			g.AllPassed = false
			g.BlockedBy = ng.Name + ": " + ng.Result.Reason
			break
		}
	}
	return g
}

// FirstFailure returns the name of the first failing gate, or "".
func FirstFailure(g model.StrategicGates) string {
	for _, ng := range g.Ordered() {
		if !ng.Result.Passed {
			return ng.Name
		}
	}
	return ""
}

func (e *Evaluator) intentAlignment(in Input) model.GateResult {
	topic := strings.ToLower(in.Topic)
	var b strings.Builder
	b.WriteString(topic)
	for _, s := range in.Signals {
		b.WriteByte(' ')
		b.WriteString(strings.ToLower(s.Text()))
	}
	text := b.String()

	var negHits []string
	for _, t := range e.negative {
		if correlation.ContainsWord(text, t) {
			negHits = append(negHits, t)
		}
	}

	if len(negHits) > 0 {
		if term := industryMention(text, in); term != "" {
			return model.GateResult{
				Passed: false,
				Reason: fmt.Sprintf("negative sentiment (%s) about the client's industry (%s)", strings.Join(negHits, ", "), term),
			}
		}
	}

	if in.Client != nil {
		for _, c := range in.Client.Competitors {
			comp := strings.ToLower(strings.TrimSpace(c))
			if comp == "" {
				continue
			}
			if prominent(comp, topic, text, in.Signals) {
				return model.GateResult{
					Passed: false,
					Reason: fmt.Sprintf("prominently names competitor %q", c),
				}
			}
		}
	}

	if len(negHits) > 0 {
		return model.GateResult{
			Passed:  true,
			Caution: true,
			Reason:  fmt.Sprintf("negative sentiment (%s) unrelated to the client's industry", strings.Join(negHits, ", ")),
		}
	}
	return model.GateResult{Passed: true, Reason: "no brand or intent risk detected"}
}

// industryMention returns the first industry term found in text.
func industryMention(text string, in Input) string {
	terms := make([]string, 0, len(in.IndustryTerms)+2)
	terms = append(terms, in.Industry)
	if in.Client != nil {
		terms = append(terms, in.Client.Industry)
	}
	terms = append(terms, in.IndustryTerms...)
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && correlation.ContainsWord(text, t) {
			return t
		}
	}
	return ""
}

// prominent: named in the topic or any signal title, or mentioned at least
// twice overall.
func prominent(comp, topic, text string, signals []model.Signal) bool {
	if correlation.ContainsWord(topic, comp) {
		return true
	}
	for _, s := range signals {
		if correlation.ContainsWord(strings.ToLower(s.Title), comp) {
			return true
		}
	}
	return correlation.CountWord(text, comp) >= 2
}

func (e *Evaluator) topicalFit(in Input) model.GateResult {
	if in.Client == nil || len(in.Client.ClusterTaxonomy) == 0 {
		return model.GateResult{Passed: true, Reason: "no cluster taxonomy configured"}
	}
	for _, name := range in.Client.ClusterTaxonomy {
		if correlation.Overlap(in.Keywords, correlation.Keywords(name, e.stopwords)) > 0 {
			return model.GateResult{
				Passed: true,
				Action: ActionExtendCluster,
				Reason: fmt.Sprintf("extends topic cluster %q", name),
			}
		}
	}
	return model.GateResult{
		Passed: true,
		Action: ActionNewCluster,
		Reason: "no matching topic cluster; starts a new one",
	}
}

func (e *Evaluator) cannibalization(in Input) model.GateResult {
	if in.Client == nil || len(in.Client.ExistingContent) == 0 {
		return model.GateResult{Passed: true, Action: ActionCreateNew, Reason: "no existing content index configured"}
	}

	// Any top-10 page sharing two or more keywords blocks, in index order.
	bestOverlap := 0
	var best model.ContentPage
	for _, page := range in.Client.ExistingContent {
		n := correlation.Overlap(in.Keywords, e.pageKeywords(page))
		if n >= 2 && page.Position > 0 && page.Position <= 10 {
			return model.GateResult{
				Passed:     false,
				Action:     ActionUpdateExisting,
				MatchedURL: page.URL,
				Reason:     fmt.Sprintf("%s already ranks #%.0f for this topic; update it instead", page.URL, page.Position),
			}
		}
		if n > bestOverlap {
			bestOverlap = n
			best = page
		}
	}

	if bestOverlap > 0 {
		return model.GateResult{
			Passed:     true,
			Action:     ActionMerge,
			MatchedURL: best.URL,
			Reason:     fmt.Sprintf("overlaps %s (%d shared keywords); consider merging", best.URL, bestOverlap),
		}
	}
	return model.GateResult{Passed: true, Action: ActionCreateNew, Reason: "no overlapping existing content"}
}

func (e *Evaluator) pageKeywords(page model.ContentPage) []string {
	set := make(map[string]bool)
	for _, k := range correlation.Keywords(page.Title, e.stopwords) {
		set[k] = true
	}
	for _, k := range page.Keywords {
		for _, w := range correlation.Keywords(k, e.stopwords) {
			set[w] = true
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// competitiveViability never blocks; difficulty informs strategy.
func competitiveViability(si model.SearchIntelligence) model.GateResult {
	var difficulty, reason string
	if si.BestPosition != nil && *si.BestPosition > 0 {
		pos := *si.BestPosition
		switch {
		case pos <= 10:
			difficulty, reason = DifficultyEasy, fmt.Sprintf("already ranking at #%.0f", pos)
		case pos <= 20:
			difficulty, reason = DifficultyMedium, fmt.Sprintf("ranking at #%.0f, within reach of page one", pos)
		case si.DemandLevel == model.DemandHigh:
			difficulty, reason = DifficultyHard, fmt.Sprintf("ranking at #%.0f for a high-demand topic", pos)
		default:
			difficulty, reason = DifficultyMedium, fmt.Sprintf("ranking at #%.0f", pos)
		}
	} else {
		switch si.DemandLevel {
		case model.DemandHigh:
			difficulty, reason = DifficultyHard, "high demand with no existing ranking"
		case model.DemandLow:
			difficulty, reason = DifficultyEasy, "low demand, little competition expected"
		case model.DemandMedium:
			difficulty, reason = DifficultyMedium, "medium demand with no existing ranking"
		default:
			difficulty, reason = DifficultyMedium, "no search data; assuming medium difficulty"
		}
	}
	return model.GateResult{Passed: true, Difficulty: difficulty, Reason: reason}
}

// Package brief runs the canonical brief lifecycle: drafting a brief from
// signals, approving or rejecting it, regenerating it and appending
// versioned channel content from approved briefs.
package brief

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/abelbrown/viralengine/internal/brain"
	"github.com/abelbrown/viralengine/internal/logging"
	"github.com/abelbrown/viralengine/internal/metrics"
	"github.com/abelbrown/viralengine/internal/model"
	"github.com/abelbrown/viralengine/internal/store"
)

// MaxEvidence bounds the signals quoted in a brief.
const MaxEvidence = 8

// Store is the subset of the store the workflow needs.
type Store interface {
	GetOpportunity(ctx context.Context, id string) (model.Opportunity, error)
	UpdateOpportunityStatus(ctx context.Context, id string, from, to model.OpportunityStatus, now time.Time) error
	SignalsByIDs(ctx context.Context, ids []string) ([]model.Signal, error)
	InsertBrief(ctx context.Context, b model.CanonicalBrief) error
	GetBrief(ctx context.Context, id string) (model.CanonicalBrief, error)
	ListBriefs(ctx context.Context, f store.BriefFilter) ([]model.CanonicalBrief, error)
	TransitionBrief(ctx context.Context, id string, from, to model.BriefStatus, now time.Time) error
	SupersedeBrief(ctx context.Context, oldID string, next model.CanonicalBrief, now time.Time) error
	InsertGeneration(ctx context.Context, g model.BriefGeneration) (model.BriefGeneration, error)
	ListGenerations(ctx context.Context, briefID string, channel model.Channel) ([]model.BriefGeneration, error)
}

// Generator produces text. *brain.ProviderManager satisfies it.
type Generator interface {
	Generate(ctx context.Context, req brain.Request) (brain.Response, error)
}

// Config controls a Workflow.
type Config struct {
	MaxTokens int
}

// Workflow owns brief state changes. It holds no locks; every transition is
// a conditional write in the store.
type Workflow struct {
	store   Store
	gen     Generator
	cfg     Config
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a Workflow. m may be nil.
func New(st Store, gen Generator, cfg Config, m *metrics.Metrics) *Workflow {
	return &Workflow{
		store:   st,
		gen:     gen,
		cfg:     cfg,
		metrics: metrics.OrNop(m),
		now:     time.Now,
	}
}

// Request identifies the signals a brief is drafted from. Signals of the
// opportunity and explicit SignalIDs are merged.
type Request struct {
	OpportunityID string
	SignalIDs     []string
	ClientID      string // defaults to the opportunity's client
}

// Generate drafts a new brief. The generator output is validated against
// the brief schema; one failure triggers a single repair attempt, a second
// failure returns a *SchemaError.
func (w *Workflow) Generate(ctx context.Context, req Request) (model.CanonicalBrief, error) {
	var opp *model.Opportunity
	ids := req.SignalIDs
	clientID := req.ClientID

	if req.OpportunityID != "" {
		o, err := w.store.GetOpportunity(ctx, req.OpportunityID)
		if err != nil {
			return model.CanonicalBrief{}, fmt.Errorf("load opportunity: %w", err)
		}
		opp = &o
		ids = mergeIDs(o.SourceSignalIDs, req.SignalIDs)
		if clientID == "" {
			clientID = o.ClientID
		}
	}

	b, err := w.draft(ctx, opp, ids, "")
	if err != nil {
		return model.CanonicalBrief{}, err
	}
	b.ClientID = clientID

	if err := w.store.InsertBrief(ctx, b); err != nil {
		return model.CanonicalBrief{}, fmt.Errorf("save brief: %w", err)
	}
	w.metrics.BriefTransitions.WithLabelValues("none", string(model.BriefDraft)).Inc()
	logging.Info("brief drafted", "id", b.ID, "opportunity", b.OpportunityID, "signals", len(b.SignalIDs), "model", b.ModelID)
	return b, nil
}

// draft builds an unsaved draft brief from signal ids.
func (w *Workflow) draft(ctx context.Context, opp *model.Opportunity, ids []string, feedback string) (model.CanonicalBrief, error) {
	if len(ids) == 0 {
		return model.CanonicalBrief{}, ErrNoSignals
	}
	signals, err := w.store.SignalsByIDs(ctx, ids)
	if err != nil {
		return model.CanonicalBrief{}, fmt.Errorf("load signals: %w", err)
	}
	if len(signals) == 0 {
		return model.CanonicalBrief{}, ErrNoSignals
	}

	evidence := buildEvidence(signals)
	content, modelID, err := w.generateContent(ctx, briefPrompt(opp, evidence, feedback))
	if err != nil {
		return model.CanonicalBrief{}, err
	}

	now := w.now()
	b := model.CanonicalBrief{
		ID:              uuid.NewString(),
		SignalIDs:       signalIDs(signals),
		Content:         content,
		Evidence:        evidence,
		SourceDateRange: dateRange(signals),
		Status:          model.BriefDraft,
		ModelID:         modelID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if opp != nil {
		b.OpportunityID = opp.ID
	}
	return b, nil
}

// generateContent asks for a brief and validates it, repairing once.
func (w *Workflow) generateContent(ctx context.Context, prompt string) (model.BriefContent, string, error) {
	req := brain.Request{
		Task:         "brief",
		SystemPrompt: briefSystemPrompt,
		UserPrompt:   prompt,
		MaxTokens:    w.cfg.MaxTokens,
		JSON:         true,
		Schema:       schemaFields,
	}

	resp, err := w.gen.Generate(ctx, req)
	if err != nil {
		return model.BriefContent{}, "", fmt.Errorf("generate brief: %w", err)
	}
	content, err := ParseContent(resp.Content)
	if err == nil {
		return content, resp.Model, nil
	}

	var se *SchemaError
	if !errors.As(err, &se) {
		return model.BriefContent{}, "", err
	}
	logging.Warn("brief failed schema, retrying", "problems", se.Problems, "model", resp.Model)

	req.UserPrompt = repairPrompt(prompt, resp.Content, se.Problems)
	resp, err = w.gen.Generate(ctx, req)
	if err != nil {
		return model.BriefContent{}, "", fmt.Errorf("generate brief repair: %w", err)
	}
	content, err = ParseContent(resp.Content)
	if err != nil {
		return model.BriefContent{}, "", err
	}
	return content, resp.Model, nil
}

// Approve moves a draft brief to approved.
func (w *Workflow) Approve(ctx context.Context, id string) (model.CanonicalBrief, error) {
	return w.transition(ctx, id, model.BriefApproved)
}

// Reject moves a draft brief to rejected.
func (w *Workflow) Reject(ctx context.Context, id string) (model.CanonicalBrief, error) {
	return w.transition(ctx, id, model.BriefRejected)
}

func (w *Workflow) transition(ctx context.Context, id string, to model.BriefStatus) (model.CanonicalBrief, error) {
	b, err := w.store.GetBrief(ctx, id)
	if err != nil {
		return model.CanonicalBrief{}, err
	}
	if b.Status != model.BriefDraft {
		return model.CanonicalBrief{}, &TransitionError{ID: id, From: b.Status, To: to}
	}

	now := w.now()
	if err := w.store.TransitionBrief(ctx, id, model.BriefDraft, to, now); err != nil {
		if !errors.Is(err, store.ErrConflict) {
			return model.CanonicalBrief{}, err
		}
		// another caller moved it first; report the state it is in now
		from := model.BriefStatus("unknown")
		if cur, gerr := w.store.GetBrief(ctx, id); gerr == nil {
			from = cur.Status
		}
		return model.CanonicalBrief{}, &TransitionError{ID: id, From: from, To: to}
	}

	w.metrics.BriefTransitions.WithLabelValues(string(model.BriefDraft), string(to)).Inc()
	logging.Info("brief transitioned", "id", id, "to", to)

	b.Status = to
	b.UpdatedAt = now
	return b, nil
}

// Regenerate drafts a replacement for an approved or rejected brief from
// the same signals. An approved brief is marked superseded in the same
// write that stores the replacement; a rejected brief stays rejected.
// Drafts and superseded briefs cannot be regenerated.
func (w *Workflow) Regenerate(ctx context.Context, id, feedback string) (model.CanonicalBrief, error) {
	old, err := w.store.GetBrief(ctx, id)
	if err != nil {
		return model.CanonicalBrief{}, err
	}
	if old.Status != model.BriefApproved && old.Status != model.BriefRejected {
		return model.CanonicalBrief{}, &TransitionError{ID: id, From: old.Status, To: model.BriefSuperseded}
	}

	var opp *model.Opportunity
	if old.OpportunityID != "" {
		o, err := w.store.GetOpportunity(ctx, old.OpportunityID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return model.CanonicalBrief{}, fmt.Errorf("load opportunity: %w", err)
		}
		if err == nil {
			opp = &o
		}
	}

	next, err := w.draft(ctx, opp, old.SignalIDs, feedback)
	if err != nil {
		return model.CanonicalBrief{}, err
	}
	next.OpportunityID = old.OpportunityID
	next.ClientID = old.ClientID
	next.ParentID = old.ID

	if old.Status == model.BriefApproved {
		if err := w.store.SupersedeBrief(ctx, old.ID, next, w.now()); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return model.CanonicalBrief{}, &TransitionError{ID: id, From: model.BriefApproved, To: model.BriefSuperseded}
			}
			return model.CanonicalBrief{}, fmt.Errorf("supersede brief: %w", err)
		}
		w.metrics.BriefTransitions.WithLabelValues(string(model.BriefApproved), string(model.BriefSuperseded)).Inc()
	} else {
		if err := w.store.InsertBrief(ctx, next); err != nil {
			return model.CanonicalBrief{}, fmt.Errorf("save brief: %w", err)
		}
	}
	w.metrics.BriefTransitions.WithLabelValues("none", string(model.BriefDraft)).Inc()

	logging.Info("brief regenerated", "id", next.ID, "parent", old.ID, "parent_status", old.Status)
	return next, nil
}

// GenerateContent appends a new versioned artifact for channel. It fails
// with ErrNotApproved unless the brief is approved, both before calling
// the generator and again at write time.
func (w *Workflow) GenerateContent(ctx context.Context, briefID string, ch model.Channel) (model.BriefGeneration, error) {
	if !ch.Valid() {
		return model.BriefGeneration{}, fmt.Errorf("unknown channel %q", ch)
	}
	b, err := w.store.GetBrief(ctx, briefID)
	if err != nil {
		return model.BriefGeneration{}, err
	}
	if b.Status != model.BriefApproved {
		return model.BriefGeneration{}, fmt.Errorf("brief %s is %s: %w", briefID, b.Status, ErrNotApproved)
	}

	resp, err := w.gen.Generate(ctx, brain.Request{
		Task:         "content:" + string(ch),
		SystemPrompt: contentSystemPrompt,
		UserPrompt:   contentPrompt(b, ch),
		MaxTokens:    w.cfg.MaxTokens,
	})
	if err != nil {
		return model.BriefGeneration{}, fmt.Errorf("generate %s content: %w", ch, err)
	}

	usage := resp.Usage
	if usage.ModelID == "" {
		usage.ModelID = resp.Model
	}
	g, err := w.store.InsertGeneration(ctx, model.BriefGeneration{
		ID:        uuid.NewString(),
		BriefID:   briefID,
		Channel:   ch,
		Content:   resp.Content,
		Usage:     usage,
		CreatedAt: w.now(),
	})
	if err != nil {
		if errors.Is(err, store.ErrBriefNotApproved) {
			return model.BriefGeneration{}, fmt.Errorf("brief %s: %w", briefID, ErrNotApproved)
		}
		return model.BriefGeneration{}, err
	}
	w.metrics.Generations.WithLabelValues(string(ch)).Inc()
	logging.Info("content generated", "brief", briefID, "channel", ch, "version", g.Version, "tokens", usage.TotalTokens)

	if b.OpportunityID != "" {
		w.markGenerated(ctx, b.OpportunityID)
	}
	return g, nil
}

// markGenerated advances the originating opportunity. Failure is logged;
// the generation is already stored.
func (w *Workflow) markGenerated(ctx context.Context, id string) {
	opp, err := w.store.GetOpportunity(ctx, id)
	if err != nil {
		logging.Warn("load opportunity for status", "id", id, "error", err)
		return
	}
	if !opp.Status.CanTransition(model.StatusGenerated) {
		return
	}
	if err := w.store.UpdateOpportunityStatus(ctx, id, opp.Status, model.StatusGenerated, w.now()); err != nil {
		logging.Warn("mark opportunity generated", "id", id, "error", err)
	}
}

// Get returns one brief.
func (w *Workflow) Get(ctx context.Context, id string) (model.CanonicalBrief, error) {
	return w.store.GetBrief(ctx, id)
}

// List returns briefs matching f, newest first.
func (w *Workflow) List(ctx context.Context, f store.BriefFilter) ([]model.CanonicalBrief, error) {
	return w.store.ListBriefs(ctx, f)
}

// Generations returns a brief's content versions. An empty channel
// returns every channel.
func (w *Workflow) Generations(ctx context.Context, briefID string, ch model.Channel) ([]model.BriefGeneration, error) {
	return w.store.ListGenerations(ctx, briefID, ch)
}

// buildEvidence quotes the most engaged signals first.
func buildEvidence(signals []model.Signal) []model.Evidence {
	sorted := make([]model.Signal, len(signals))
	copy(sorted, signals)
	sort.SliceStable(sorted, func(i, j int) bool {
		ei, ej := sorted[i].Metrics.Engagement(), sorted[j].Metrics.Engagement()
		if ei != ej {
			return ei > ej
		}
		return sorted[i].ID < sorted[j].ID
	})
	if len(sorted) > MaxEvidence {
		sorted = sorted[:MaxEvidence]
	}

	out := make([]model.Evidence, 0, len(sorted))
	for _, s := range sorted {
		out = append(out, model.Evidence{
			SignalID:  s.ID,
			Title:     s.Title,
			URL:       s.URL,
			Excerpt:   s.RawExcerpt,
			Community: s.Community,
			Upvotes:   s.Metrics.Upvotes,
			Comments:  s.Metrics.Comments,
			Observed:  s.ObservedAt(),
		})
	}
	return out
}

func dateRange(signals []model.Signal) model.DateRange {
	var dr model.DateRange
	for _, s := range signals {
		t := s.ObservedAt()
		if dr.From.IsZero() || t.Before(dr.From) {
			dr.From = t
		}
		if t.After(dr.To) {
			dr.To = t
		}
	}
	return dr
}

func signalIDs(signals []model.Signal) []string {
	ids := make([]string, len(signals))
	for i, s := range signals {
		ids[i] = s.ID
	}
	sort.Strings(ids)
	return ids
}

func mergeIDs(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, id := range list {
			if id != "" && !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

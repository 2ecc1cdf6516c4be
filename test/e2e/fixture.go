// Package e2e drives the engine end to end: ingestion through opportunity
// building, the brief workflow, and the viral binary itself.
package e2e

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/abelbrown/viralengine/internal/brain"
	"github.com/abelbrown/viralengine/internal/fetch"
	"github.com/abelbrown/viralengine/internal/model"
	"github.com/abelbrown/viralengine/internal/store"
)

// staticSource serves a fixed set of signals.
type staticSource struct {
	name    string
	signals []model.NormalizedSignal
}

func (s *staticSource) Name() string    { return s.name }
func (s *staticSource) Available() bool { return true }
func (s *staticSource) FetchSignals(ctx context.Context, opts fetch.Options) ([]model.NormalizedSignal, error) {
	out := make([]model.NormalizedSignal, len(s.signals))
	for i, sig := range s.signals {
		sig.Industry = opts.Industry
		out[i] = sig
	}
	return out, nil
}

func redditSignal(id, title string, upvotes, comments int, age time.Duration) model.NormalizedSignal {
	return model.NormalizedSignal{
		SourceType:        model.SourceReddit,
		ExternalID:        id,
		URL:               "https://reddit.com/r/SEO/" + id,
		Title:             title,
		Community:         "r/SEO",
		CreatedAtExternal: time.Now().Add(-age),
		Metrics:           model.Metrics{Upvotes: upvotes, Comments: comments},
		RawExcerpt:        "Traffic fell off a cliff this week.",
	}
}

const briefJSON = `{
  "coreTension": "Sites lost organic traffic overnight and nobody knows why.",
  "ourAngle": "Most collapses are measurement failures first.",
  "keyClaim": "Check tracking before rewriting content.",
  "proofPoints": ["Several threads trace the drop to analytics changes", "Recoveries started with tag audits"],
  "whyNow": "The core update rolled out this week."
}`

// fakeLLM answers brief requests with briefJSON and content requests with
// a numbered body. It is registered in a real ProviderManager.
type fakeLLM struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeLLM) Name() string    { return "fake" }
func (f *fakeLLM) Available() bool { return true }
func (f *fakeLLM) Generate(ctx context.Context, req brain.Request) (brain.Response, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	content := fmt.Sprintf("%s draft #%d", req.Task, n)
	if req.JSON {
		content = briefJSON
	}
	return brain.Response{
		Content: content,
		Model:   "fake-1",
		Usage:   model.Usage{InputTokens: 100, OutputTokens: 50, TotalTokens: 150, ModelID: "fake-1"},
	}, nil
}

func generator() (*brain.ProviderManager, *fakeLLM) {
	llm := &fakeLLM{}
	pm := brain.NewProviderManager()
	pm.AddProvider(llm)
	pm.SetPreferred("fake")
	return pm, llm
}

// seedCLIFixture writes one opportunity and one approved brief with a
// generation into the database at path.
func seedCLIFixture(ctx context.Context, path string) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()

	now := time.Now().UTC()
	_, sigID, err := st.UpsertSignal(ctx, redditSignal("cli1", "Fixture SEO traffic collapse", 120, 30, time.Hour), now, 6*time.Hour)
	if err != nil {
		return err
	}
	opp := model.Opportunity{
		ID:              "opp-fixture",
		Industry:        "marketing",
		Channel:         model.ChannelSocial,
		Topic:           "Fixture traffic collapse",
		Angle:           "angle",
		Hook:            "hook",
		Reasoning:       "reasoning",
		Score:           64.5,
		SourceSignalIDs: []string{sigID},
		Status:          model.StatusNew,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := st.InsertOpportunityBatch(ctx, []model.Opportunity{opp}); err != nil {
		return err
	}
	b := model.CanonicalBrief{
		ID:            "brief-fixture",
		OpportunityID: opp.ID,
		SignalIDs:     []string{sigID},
		Content: model.BriefContent{
			CoreTension: "tension",
			OurAngle:    "angle",
			KeyClaim:    "Fixture key claim",
			ProofPoints: []string{"one", "two"},
			WhyNow:      "now",
		},
		Status:    model.BriefDraft,
		ModelID:   "fake-1",
		CreatedAt: now,
		UpdatedAt: now,
	}
	return st.InsertBrief(ctx, b)
}

package e2e

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/abelbrown/viralengine/internal/brief"
	"github.com/abelbrown/viralengine/internal/config"
	"github.com/abelbrown/viralengine/internal/correlation"
	"github.com/abelbrown/viralengine/internal/fetch"
	"github.com/abelbrown/viralengine/internal/filter"
	"github.com/abelbrown/viralengine/internal/gates"
	"github.com/abelbrown/viralengine/internal/ingest"
	"github.com/abelbrown/viralengine/internal/model"
	"github.com/abelbrown/viralengine/internal/opportunity"
	"github.com/abelbrown/viralengine/internal/store"
)

type fixedSearch struct{ si model.SearchIntelligence }

func (f fixedSearch) Build(context.Context, []string, string, *model.ClientContext) model.SearchIntelligence {
	return f.si
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "viral.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func ingestAll(t *testing.T, st *store.Store, cfg *config.Config, signals ...model.NormalizedSignal) {
	t.Helper()
	spam := filter.NewSpam(filter.SpamConfig{
		Blocklist:          cfg.Spam.Blocklist,
		CapsMinLength:      cfg.Spam.CapsMinLength,
		SpecialCharDensity: cfg.Spam.SpecialCharDensity,
	})
	p := ingest.New(st, []fetch.Source{&staticSource{name: "fixture", signals: signals}}, spam, ingest.Config{
		CacheWindow: cfg.Ingest.CacheWindow,
	}, nil)
	res := p.Run(context.Background(), ingest.Options{Industry: "marketing"})
	if err := res.Err(); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Inserted != len(signals) {
		t.Fatalf("inserted %d, want %d", res.Inserted, len(signals))
	}
}

func newBuilder(st *store.Store, cfg *config.Config, si model.SearchIntelligence, channels ...model.Channel) *opportunity.Builder {
	return opportunity.New(st,
		correlation.NewClusterer(cfg.Clustering.Stopwords, cfg.Clustering.StandaloneUpvotes),
		fixedSearch{si: si},
		gates.NewEvaluator(gates.Config{NegativeTerms: cfg.Gates.NegativeTerms, Stopwords: cfg.Clustering.Stopwords}),
		opportunity.Config{EnforceGates: true, Channels: channels},
		nil)
}

// Three signals sharing "seo" and "traffic": the 150-upvote post stands
// alone, the other two group together.
func TestScenarioClusteringAndScoring(t *testing.T) {
	cfg := config.DefaultConfig()
	st := openStore(t)
	ingestAll(t, st, cfg,
		redditSignal("a", "SEO traffic collapse after the core update", 150, 10, time.Hour),
		redditSignal("b", "Organic SEO traffic down everywhere", 40, 12, 2*time.Hour),
		redditSignal("c", "Recovering SEO traffic with a site refresh", 35, 9, 3*time.Hour),
	)

	res, err := newBuilder(st, cfg, model.NoSearchData()).Build(context.Background(), opportunity.Options{
		Industry:         "marketing",
		IndustryKeywords: cfg.IndustryKeywords("marketing"),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.Signals != 3 || res.Clusters != 2 {
		t.Fatalf("signals=%d clusters=%d, want 3 and 2", res.Signals, res.Clusters)
	}
	if len(res.Opportunities) == 0 {
		t.Fatal("no opportunities")
	}

	sizes := map[int]bool{}
	for _, o := range res.Opportunities {
		sizes[len(o.SourceSignalIDs)] = true
		if o.ScoreBreakdown.Relevance != 0 {
			t.Errorf("%s: relevance = %v, want 0", o.Topic, o.ScoreBreakdown.Relevance)
		}
		if o.ScoreBreakdown.Engagement <= 0 {
			t.Errorf("%s: engagement = %v, want > 0", o.Topic, o.ScoreBreakdown.Engagement)
		}
		if o.Score != o.ScoreBreakdown.Total() {
			t.Errorf("%s: score %v != breakdown total %v", o.Topic, o.Score, o.ScoreBreakdown.Total())
		}
	}
	if !sizes[1] || !sizes[2] {
		t.Errorf("cluster sizes = %v, want a standalone and a pair", sizes)
	}

	stored, err := st.ListOpportunities(context.Background(), store.OpportunityFilter{})
	if err != nil {
		t.Fatalf("ListOpportunities: %v", err)
	}
	if len(stored) != len(res.Opportunities) {
		t.Errorf("stored %d, built %d", len(stored), len(res.Opportunities))
	}
}

// Zero real search volume blocks blog unless engagement is exceptional.
func TestScenarioExceptionalViralEscapeHatch(t *testing.T) {
	zero := 0
	si := model.NoSearchData()
	si.HasData = true
	si.DataSources.RealVolume = true
	si.SearchVolume = &zero
	si.DemandLevel = model.DemandLow

	tests := []struct {
		name       string
		engagement int
		viable     bool
	}{
		{"exceptional", 6000, true},
		{"ordinary", 3000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			st := openStore(t)
			ingestAll(t, st, cfg, redditSignal("v", "Viral SEO traffic experiment", tt.engagement-100, 100, time.Hour))

			res, err := newBuilder(st, cfg, si, model.ChannelBlog).Build(context.Background(), opportunity.Options{Industry: "marketing"})
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if len(res.Opportunities) != 1 {
				t.Fatalf("opportunities = %d, want 1", len(res.Opportunities))
			}
			blog := res.Opportunities[0].SEOData.ChannelScores.Blog
			if blog.Viable != tt.viable {
				t.Errorf("blog viable = %v, want %v (notes %v)", blog.Viable, tt.viable, blog.Notes)
			}
		})
	}
}

func draftFromBuild(t *testing.T, st *store.Store, w *brief.Workflow) model.CanonicalBrief {
	t.Helper()
	cfg := config.DefaultConfig()
	ingestAll(t, st, cfg, redditSignal("d", "SEO traffic collapse after the core update", 150, 10, time.Hour))
	res, err := newBuilder(st, cfg, model.NoSearchData()).Build(context.Background(), opportunity.Options{Industry: "marketing"})
	if err != nil || len(res.Opportunities) == 0 {
		t.Fatalf("Build: %v (%d opportunities)", err, len(res.Opportunities))
	}
	b, err := w.Generate(context.Background(), brief.Request{OpportunityID: res.Opportunities[0].ID})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return b
}

// Two concurrent approvals of one draft: exactly one wins.
func TestScenarioConcurrentApproval(t *testing.T) {
	st := openStore(t)
	gen, _ := generator()
	w := brief.New(st, gen, brief.Config{}, nil)
	b := draftFromBuild(t, st, w)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = w.Approve(context.Background(), b.ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case !errors.Is(err, brief.ErrInvalidTransition):
			t.Errorf("loser err = %v, want ErrInvalidTransition", err)
		}
	}
	if wins != 1 {
		t.Fatalf("%d approvals succeeded, want 1", wins)
	}

	// a later approval after the commit also fails
	if _, err := w.Approve(context.Background(), b.ID); !errors.Is(err, brief.ErrInvalidTransition) {
		t.Errorf("late approve err = %v", err)
	}
}

// Two content generations for the same brief and channel are versions 1
// and 2, both kept.
func TestScenarioVersionedGenerations(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	gen, llm := generator()
	w := brief.New(st, gen, brief.Config{}, nil)
	b := draftFromBuild(t, st, w)

	if _, err := w.GenerateContent(ctx, b.ID, model.ChannelSocial); !errors.Is(err, brief.ErrNotApproved) {
		t.Fatalf("draft content err = %v, want ErrNotApproved", err)
	}
	if _, err := w.Approve(ctx, b.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	first, err := w.GenerateContent(ctx, b.ID, model.ChannelSocial)
	if err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	second, err := w.GenerateContent(ctx, b.ID, model.ChannelSocial)
	if err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	if first.Version != 1 || second.Version != 2 {
		t.Fatalf("versions = %d, %d", first.Version, second.Version)
	}

	gens, err := w.Generations(ctx, b.ID, model.ChannelSocial)
	if err != nil {
		t.Fatalf("Generations: %v", err)
	}
	if len(gens) != 2 || gens[0].Content == gens[1].Content {
		t.Fatalf("generations = %+v", gens)
	}
	if gens[0].ID != first.ID || gens[1].ID != second.ID {
		t.Error("generations reordered or overwritten")
	}
	if llm.calls != 3 {
		t.Errorf("generator calls = %d, want 3", llm.calls)
	}
}

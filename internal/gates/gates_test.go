package gates

import (
	"strings"
	"testing"

	"github.com/abelbrown/viralengine/internal/model"
)

func evaluator() *Evaluator {
	return NewEvaluator(Config{
		NegativeTerms: []string{"scam", "terrible", "rip off"},
		Stopwords:     []string{"the", "for", "and", "how"},
	})
}

func signals(titles ...string) []model.Signal {
	out := make([]model.Signal, len(titles))
	for i, t := range titles {
		out[i] = model.Signal{ID: t, Title: t}
	}
	return out
}

func TestEvaluateNoContextPassesEverything(t *testing.T) {
	g := evaluator().Evaluate(Input{
		Topic:    "SEO traffic collapse",
		Keywords: []string{"collapse", "seo", "traffic"},
		Signals:  signals("SEO traffic collapse"),
		Search:   model.NoSearchData(),
	})
	if !g.AllPassed || g.BlockedBy != "" {
		t.Fatalf("gates = %+v, want all passed", g)
	}
	if g.CompetitiveViability.Difficulty != DifficultyMedium {
		t.Errorf("unknown data difficulty = %q, want medium", g.CompetitiveViability.Difficulty)
	}
}

func TestIntentAlignment(t *testing.T) {
	client := &model.ClientContext{Industry: "marketing", Competitors: []string{"HubSpot"}}
	tests := []struct {
		name        string
		topic       string
		titles      []string
		industry    []string
		wantPass    bool
		wantCaution bool
	}{
		{"clean", "Newsletter growth tips", nil, nil, true, false},
		{"negative about industry", "This marketing agency is a scam", nil, nil, false, false},
		{"negative via industry term", "Terrible funnel advice everywhere", nil, []string{"funnel"}, false, false},
		{"negative unrelated", "Terrible weather ruined the launch party", nil, nil, true, true},
		{"competitor in topic", "Why HubSpot changed pricing", nil, nil, false, false},
		{"competitor in a title", "CRM pricing thread", []string{"CRM pricing thread", "hubspot raised prices"}, nil, false, false},
		{"competitor substring ignored", "hubspotter meetup notes", nil, nil, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			titles := tt.titles
			if titles == nil {
				titles = []string{tt.topic}
			}
			r := evaluator().intentAlignment(Input{
				Topic:         tt.topic,
				Signals:       signals(titles...),
				IndustryTerms: tt.industry,
				Client:        client,
			})
			if r.Passed != tt.wantPass || r.Caution != tt.wantCaution {
				t.Errorf("got passed=%v caution=%v (%s), want passed=%v caution=%v",
					r.Passed, r.Caution, r.Reason, tt.wantPass, tt.wantCaution)
			}
		})
	}
}

func TestIntentCompetitorRepeatedInExcerpts(t *testing.T) {
	sigs := []model.Signal{
		{Title: "CRM migration", RawExcerpt: "we left acme last year"},
		{Title: "CRM costs", RawExcerpt: "acme support was slow"},
	}
	r := evaluator().intentAlignment(Input{
		Topic:   "CRM migration",
		Signals: sigs,
		Client:  &model.ClientContext{Competitors: []string{"Acme"}},
	})
	if r.Passed {
		t.Errorf("two competitor mentions should fail: %s", r.Reason)
	}
}

func TestTopicalFit(t *testing.T) {
	e := evaluator()
	in := Input{Keywords: []string{"seo", "traffic"}}

	if r := e.topicalFit(in); !r.Passed || r.Action != "" {
		t.Errorf("no taxonomy = %+v", r)
	}

	in.Client = &model.ClientContext{ClusterTaxonomy: []string{"Email Marketing", "Technical SEO"}}
	r := e.topicalFit(in)
	if !r.Passed || r.Action != ActionExtendCluster || !strings.Contains(r.Reason, "Technical SEO") {
		t.Errorf("overlap = %+v", r)
	}

	in.Client.ClusterTaxonomy = []string{"Email Marketing"}
	if r := e.topicalFit(in); !r.Passed || r.Action != ActionNewCluster {
		t.Errorf("no overlap = %+v", r)
	}
}

func TestCannibalization(t *testing.T) {
	e := evaluator()
	kw := []string{"drop", "recovery", "seo", "traffic"}
	tests := []struct {
		name       string
		pages      []model.ContentPage
		wantPass   bool
		wantAction string
	}{
		{"no index", nil, true, ActionCreateNew},
		{"top ten page", []model.ContentPage{{URL: "/seo-traffic", Title: "SEO traffic recovery guide", Position: 4}}, false, ActionUpdateExisting},
		{"weak page", []model.ContentPage{{URL: "/seo-traffic", Title: "SEO traffic recovery guide", Position: 35}}, true, ActionMerge},
		{"single overlap top ten", []model.ContentPage{{URL: "/seo", Title: "SEO basics", Position: 2}}, true, ActionMerge},
		{"keywords field", []model.ContentPage{{URL: "/k", Title: "Guide", Keywords: []string{"traffic drop"}, Position: 9}}, false, ActionUpdateExisting},
		{"unrelated", []model.ContentPage{{URL: "/email", Title: "Email subject lines", Position: 1}}, true, ActionCreateNew},
		{"ranking page behind stronger overlap", []model.ContentPage{
			{URL: "/old-guide", Title: "SEO traffic drop recovery", Position: 40},
			{URL: "/ranking", Title: "SEO traffic", Position: 3},
		}, false, ActionUpdateExisting},
		{"weak pages only", []model.ContentPage{
			{URL: "/a", Title: "SEO traffic", Position: 30},
			{URL: "/b", Title: "SEO traffic drop recovery", Position: 0},
		}, true, ActionMerge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Input{Keywords: kw, Client: &model.ClientContext{ExistingContent: tt.pages}}
			r := e.cannibalization(in)
			if r.Passed != tt.wantPass || r.Action != tt.wantAction {
				t.Errorf("got %+v, want passed=%v action=%s", r, tt.wantPass, tt.wantAction)
			}
		})
	}
}

func TestCannibalizationFirstRankingPageWins(t *testing.T) {
	e := evaluator()
	pages := []model.ContentPage{
		{URL: "/old-guide", Title: "SEO traffic drop recovery", Position: 40},
		{URL: "/ranking", Title: "SEO traffic", Position: 3},
		{URL: "/also-ranking", Title: "Traffic recovery", Position: 1},
	}
	in := Input{Keywords: []string{"drop", "recovery", "seo", "traffic"}, Client: &model.ClientContext{ExistingContent: pages}}
	for i := 0; i < 3; i++ {
		r := e.cannibalization(in)
		if r.Passed || r.MatchedURL != "/ranking" {
			t.Fatalf("run %d: got %+v, want /ranking to block", i, r)
		}
	}

	weak := Input{Keywords: in.Keywords, Client: &model.ClientContext{ExistingContent: pages[:1]}}
	if r := e.cannibalization(weak); !r.Passed || r.MatchedURL != "/old-guide" {
		t.Errorf("weak only: got %+v, want merge with /old-guide", r)
	}
}

func TestCompetitiveViability(t *testing.T) {
	pos := func(p float64) *float64 { return &p }
	tests := []struct {
		name   string
		si     model.SearchIntelligence
		expect string
	}{
		{"ranking top ten", model.SearchIntelligence{BestPosition: pos(6), DemandLevel: model.DemandHigh}, DifficultyEasy},
		{"page two", model.SearchIntelligence{BestPosition: pos(15)}, DifficultyMedium},
		{"deep high demand", model.SearchIntelligence{BestPosition: pos(40), DemandLevel: model.DemandHigh}, DifficultyHard},
		{"deep low demand", model.SearchIntelligence{BestPosition: pos(40), DemandLevel: model.DemandLow}, DifficultyMedium},
		{"high no rank", model.SearchIntelligence{DemandLevel: model.DemandHigh}, DifficultyHard},
		{"low no rank", model.SearchIntelligence{DemandLevel: model.DemandLow}, DifficultyEasy},
		{"unknown", model.NoSearchData(), DifficultyMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := competitiveViability(tt.si)
			if !r.Passed {
				t.Error("competitive viability must never block")
			}
			if r.Difficulty != tt.expect {
				t.Errorf("difficulty = %s, want %s", r.Difficulty, tt.expect)
			}
		})
	}
}

func TestBlockedByReportsFirstFailure(t *testing.T) {
	in := Input{
		Topic:    "Marketing agency scam exposed on SEO traffic",
		Keywords: []string{"agency", "exposed", "marketing", "scam", "seo", "traffic"},
		Signals:  signals("Marketing agency scam exposed on SEO traffic"),
		Search:   model.NoSearchData(),
		Industry: "marketing",
		Client: &model.ClientContext{
			ExistingContent: []model.ContentPage{{URL: "/seo-traffic", Title: "SEO traffic", Position: 3}},
		},
	}
	for i := 0; i < 5; i++ {
		g := evaluator().Evaluate(in)
		if g.AllPassed {
			t.Fatal("expected failure")
		}
		if g.IntentAlignment.Passed || g.Cannibalization.Passed {
			t.Fatalf("both gate 1 and gate 3 should fail: %+v", g)
		}
		if !strings.HasPrefix(g.BlockedBy, model.GateIntentAlignment+":") {
			t.Errorf("BlockedBy = %q, want intent alignment", g.BlockedBy)
		}
		if FirstFailure(g) != model.GateIntentAlignment {
			t.Errorf("FirstFailure = %q", FirstFailure(g))
		}
	}
}

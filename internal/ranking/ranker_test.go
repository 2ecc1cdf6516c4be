package ranking

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/abelbrown/viralengine/internal/model"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func cluster(sigs ...model.Signal) model.Cluster {
	return model.Cluster{ID: "c", Signals: sigs}
}

func signal(up, com int, community string, age time.Duration) model.Signal {
	return model.Signal{
		Title:             "t",
		Community:         community,
		Metrics:           model.Metrics{Upvotes: up, Comments: com},
		CreatedAtExternal: now.Add(-age),
	}
}

func TestEngagementRanker(t *testing.T) {
	ctx := NewContext(now, nil)

	if got := (EngagementRanker{}).Score(cluster(signal(0, 0, "", 0)), ctx); got != 0 {
		t.Errorf("zero engagement = %v, want 0", got)
	}

	// log10(100)*5 + log10(10)*3 ≈ 13
	got := (EngagementRanker{}).Score(cluster(signal(99, 9, "", 0)), ctx)
	if math.Abs(got-13) > 0.1 {
		t.Errorf("engagement = %v, want ~13", got)
	}

	huge := (EngagementRanker{}).Score(cluster(signal(10_000_000, 1_000_000, "", 0)), ctx)
	if huge != engagementMax {
		t.Errorf("engagement should cap at %v, got %v", engagementMax, huge)
	}
}

func TestFreshnessRanker(t *testing.T) {
	ctx := NewContext(now, nil)
	tests := []struct {
		age  time.Duration
		want float64
	}{
		{0, 20},
		{-time.Hour, 20},
		{24 * time.Hour, 18},
		{120 * time.Hour, 10},
		{30 * 24 * time.Hour, 0},
	}
	for _, tt := range tests {
		got := (FreshnessRanker{}).Score(cluster(signal(1, 1, "", tt.age)), ctx)
		if got != tt.want {
			t.Errorf("freshness(age=%v) = %v, want %v", tt.age, got, tt.want)
		}
	}
}

func TestRelevanceRanker(t *testing.T) {
	ctx := NewContext(now, []string{"Marketing", "brand", "content"})
	tests := []struct {
		name     string
		keywords []string
		want     float64
	}{
		{"no overlap", []string{"seo", "traffic"}, 0},
		{"one match", []string{"branding", "traffic"}, 8},
		{"industry keyword inside cluster keyword", []string{"contentops"}, 8},
		{"fragments do not match", []string{"con", "ran", "tent", "market"}, 0},
		{"capped", []string{"brand", "content", "contentops", "marketing"}, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := model.Cluster{Keywords: tt.keywords}
			if got := (RelevanceRanker{}).Score(c, ctx); got != tt.want {
				t.Errorf("relevance = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNoveltyRanker(t *testing.T) {
	ctx := NewContext(now, nil)

	single := (NoveltyRanker{}).Score(cluster(signal(100, 10, "a", 0)), ctx)
	if single != 10 {
		t.Errorf("single novelty = %v, want 10", single)
	}
	if got := (NoveltyRanker{}).Score(cluster(signal(10, 50, "a", 0)), ctx); got != noveltyMax {
		t.Errorf("discussion-heavy novelty = %v, want cap", got)
	}
	if got := (NoveltyRanker{}).Score(cluster(signal(0, 5, "a", 0)), ctx); got != noveltyFloor {
		t.Errorf("zero-upvote novelty = %v, want floor", got)
	}

	multi := cluster(signal(1, 1, "a", 0), signal(1, 1, "b", 0), signal(1, 1, "a", 0))
	if got := (NoveltyRanker{}).Score(multi, ctx); got != 10 {
		t.Errorf("multi novelty = %v, want 10", got)
	}
	wide := cluster(signal(1, 1, "a", 0), signal(1, 1, "b", 0), signal(1, 1, "c", 0), signal(1, 1, "d", 0))
	if got := (NoveltyRanker{}).Score(wide, ctx); got != noveltyMax {
		t.Errorf("wide novelty = %v, want cap", got)
	}
}

func TestScoreBreakdownBounds(t *testing.T) {
	ctx := NewContext(now, []string{"seo", "traffic", "content", "brand"})
	clusters := []model.Cluster{
		{Keywords: []string{"seo", "traffic", "content", "brand"}, Signals: []model.Signal{signal(1_000_000, 900_000, "x", 0)}},
		{Keywords: nil, Signals: []model.Signal{signal(0, 0, "", 1000*time.Hour)}},
		cluster(signal(5, 2, "a", time.Hour), signal(7, 1, "b", 2*time.Hour)),
	}

	for _, c := range clusters {
		b := Score(c, ctx)
		for _, r := range Axes() {
			var v float64
			switch r.Name() {
			case "engagement":
				v = b.Engagement
			case "freshness":
				v = b.Freshness
			case "relevance":
				v = b.Relevance
			case "novelty":
				v = b.Novelty
			case "seasonality":
				v = b.Seasonality
			}
			if v < 0 || v > r.Max() {
				t.Errorf("%s = %v outside [0,%v]", r.Name(), v, r.Max())
			}
		}
		sum := b.Engagement + b.Freshness + b.Relevance + b.Novelty + b.Seasonality
		if math.Abs(sum-b.Total()) > 1e-9 {
			t.Errorf("Total() = %v, sum = %v", b.Total(), sum)
		}
	}
}

func TestScoreIsPure(t *testing.T) {
	ctx := NewContext(now, []string{"seo"})
	c := cluster(signal(40, 5, "a", 3*time.Hour), signal(35, 2, "b", 5*time.Hour))
	c.Keywords = []string{"seo", "traffic"}
	if diff := cmp.Diff(Score(c, ctx), Score(c, ctx)); diff != "" {
		t.Errorf("Score not stable (-first +second):\n%s", diff)
	}
}

func TestMomentum(t *testing.T) {
	if got := Momentum(model.ScoreBreakdown{}); got != 0 {
		t.Errorf("Momentum(zero) = %v", got)
	}
	if got := Momentum(model.ScoreBreakdown{Engagement: 30, Freshness: 20}); got != 1 {
		t.Errorf("Momentum(max) = %v", got)
	}
	lo := Momentum(model.ScoreBreakdown{Engagement: 10, Freshness: 5})
	hi := Momentum(model.ScoreBreakdown{Engagement: 10, Freshness: 15})
	if lo >= hi {
		t.Errorf("fresher clusters should have more momentum: %v >= %v", lo, hi)
	}
}

func TestSearchDemandScore(t *testing.T) {
	vol := func(v int) *int { return &v }
	kd := func(v float64) *float64 { return &v }

	if got := SearchDemandScore(model.NoSearchData()); got != nil {
		t.Errorf("no data should yield nil, got %v", *got)
	}

	rankOnly := model.NoSearchData()
	rankOnly.HasData = true
	rankOnly.DataSources.RankTracking = true
	rankOnly.TotalImpressions = 50_000
	if got := SearchDemandScore(rankOnly); got != nil {
		t.Errorf("rank tracking alone should yield nil, got %v", *got)
	}

	low := model.SearchIntelligence{DataSources: model.DataSources{RealVolume: true}, SearchVolume: vol(50), KeywordDifficulty: kd(20)}
	high := low
	high.SearchVolume = vol(20_000)
	l, h := SearchDemandScore(low), SearchDemandScore(high)
	if l == nil || h == nil {
		t.Fatal("volume data should produce a score")
	}
	if *l >= *h {
		t.Errorf("higher volume should score higher: %v >= %v", *l, *h)
	}
	if *h > 100 || *l < 0 {
		t.Errorf("scores out of range: %v %v", *l, *h)
	}
}

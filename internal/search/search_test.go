package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/go-cmp/cmp"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/abelbrown/viralengine/internal/model"
)

// fakeVolume answers from a fixed table.
type fakeVolume struct {
	data  map[string]int
	err   error
	calls atomic.Int32
	delay time.Duration
}

func (f *fakeVolume) Name() string { return "fake_volume" }

func (f *fakeVolume) KeywordData(ctx context.Context, keyword string) (*KeywordData, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.data[keyword]
	if !ok {
		return nil, nil
	}
	kd := 40.0
	return &KeywordData{Keyword: keyword, Volume: v, Difficulty: &kd}, nil
}

type fakeRank struct {
	rows []RankRow
	err  error
}

func (f *fakeRank) Name() string { return "fake_rank" }

func (f *fakeRank) Query(context.Context, string, DateRange, []string) ([]RankRow, error) {
	return f.rows, f.err
}

func fastClient(c *apiClient) {
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	c.backoffs = []time.Duration{time.Millisecond, time.Millisecond}
}

func TestDataForSEO(t *testing.T) {
	var gotAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		gotAuth = ok && user == "login" && pass == "secret"

		var tasks []dfsTask
		if err := json.NewDecoder(r.Body).Decode(&tasks); err != nil || len(tasks) != 1 {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		kw := tasks[0].Keywords[0]
		if kw == "unknown" {
			w.Write([]byte(`{"status_code":20000,"tasks":[{"status_code":20000,"result":[{"keyword":"unknown","search_volume":null}]}]}`))
			return
		}
		w.Write([]byte(`{"status_code":20000,"tasks":[{"status_code":20000,"result":[{"keyword":"` + kw + `","search_volume":2400,"competition_index":63}]}]}`))
	}))
	defer srv.Close()

	p := NewDataForSEO(DataForSEOConfig{Login: "login", Password: "secret", BaseURL: srv.URL})
	fastClient(p.client)

	data, err := p.KeywordData(context.Background(), "  SEO Traffic ")
	if err != nil {
		t.Fatalf("KeywordData: %v", err)
	}
	if !gotAuth {
		t.Error("basic auth not sent")
	}
	kd := 63.0
	want := &KeywordData{Keyword: "seo traffic", Volume: 2400, Difficulty: &kd}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Errorf("KeywordData mismatch (-want +got):\n%s", diff)
	}

	none, err := p.KeywordData(context.Background(), "unknown")
	if err != nil || none != nil {
		t.Errorf("unknown keyword = %v, %v; want nil, nil", none, err)
	}
}

func TestDataForSEOUnavailableWithoutCredentials(t *testing.T) {
	p := NewDataForSEO(DataForSEOConfig{})
	if _, err := p.KeywordData(context.Background(), "seo"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestDataForSEORetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"tasks":[{"result":[{"keyword":"seo","search_volume":10}]}]}`))
	}))
	defer srv.Close()

	p := NewDataForSEO(DataForSEOConfig{Login: "l", Password: "p", BaseURL: srv.URL})
	fastClient(p.client)
	data, err := p.KeywordData(context.Background(), "seo")
	if err != nil {
		t.Fatalf("KeywordData: %v", err)
	}
	if data.Volume != 10 || hits.Load() != 2 {
		t.Errorf("volume=%d hits=%d, want 10 and 2", data.Volume, hits.Load())
	}
}

func TestSearchConsoleQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !strings.HasSuffix(r.URL.Path, "/searchAnalytics/query") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req gscRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.StartDate != "2025-02-01" || req.EndDate != "2025-03-01" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"rows":[{"keys":["seo traffic drop"],"clicks":12,"impressions":900,"ctr":0.013,"position":7.4},{"keys":[],"clicks":1}]}`))
	}))
	defer srv.Close()

	p := NewSearchConsole(SearchConsoleConfig{AccessToken: "tok", BaseURL: srv.URL})
	fastClient(p.client)
	dr := DateRange{Start: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}
	rows, err := p.Query(context.Background(), "https://example.com/", dr, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	want := []RankRow{{Query: "seo traffic drop", Impressions: 900, Clicks: 12, CTR: 0.013, Position: 7.4}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}

	if _, err := NewSearchConsole(SearchConsoleConfig{}).Query(context.Background(), "x", dr, nil); !errors.Is(err, ErrUnavailable) {
		t.Errorf("no token err = %v, want ErrUnavailable", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	clock := time.Unix(1000, 0)
	c.now = func() time.Time { return clock }
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	if v, ok, _ := c.Get(ctx, "k"); !ok || string(v) != "v" {
		t.Fatalf("Get = %q, %v", v, ok)
	}
	clock = clock.Add(time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("entry should have expired")
	}
}

func TestRedisCache(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCache(db, "test:")
	ctx := context.Background()

	t.Run("hit", func(t *testing.T) {
		mock.ExpectGet("test:seo").SetVal(`{"found":true}`)
		v, ok, err := c.Get(ctx, "seo")
		if err != nil || !ok || string(v) != `{"found":true}` {
			t.Errorf("Get = %q, %v, %v", v, ok, err)
		}
	})

	t.Run("miss", func(t *testing.T) {
		mock.ExpectGet("test:none").RedisNil()
		_, ok, err := c.Get(ctx, "none")
		if err != nil || ok {
			t.Errorf("miss = %v, %v; want false, nil", ok, err)
		}
	})

	t.Run("error", func(t *testing.T) {
		mock.ExpectGet("test:boom").SetErr(errors.New("connection refused"))
		if _, _, err := c.Get(ctx, "boom"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("set", func(t *testing.T) {
		val := []byte(`{"found":false}`)
		mock.ExpectSet("test:seo", val, time.Hour).SetVal("OK")
		if err := c.Set(ctx, "seo", val, time.Hour); err != nil {
			t.Errorf("Set: %v", err)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("redis expectations not met: %v", err)
	}
}

func TestCachedVolumeCollapsesAndCachesMisses(t *testing.T) {
	fv := &fakeVolume{data: map[string]int{"seo": 5000}, delay: 50 * time.Millisecond}
	cv := NewCachedVolume(fv, nil, time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d, err := cv.KeywordData(ctx, "seo"); err != nil || d == nil || d.Volume != 5000 {
				t.Errorf("KeywordData = %v, %v", d, err)
			}
		}()
	}
	wg.Wait()
	if n := fv.calls.Load(); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}

	for i := 0; i < 2; i++ {
		if d, err := cv.KeywordData(ctx, "nothing"); err != nil || d != nil {
			t.Errorf("miss = %v, %v", d, err)
		}
	}
	if n := fv.calls.Load(); n != 2 {
		t.Errorf("no-data answers should be cached: upstream calls = %d, want 2", n)
	}
}

// blockingVolume holds every lookup until release is closed and reports
// cancellation of the context it was handed.
type blockingVolume struct {
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingVolume) Name() string { return "blocking_volume" }

func (b *blockingVolume) KeywordData(ctx context.Context, keyword string) (*KeywordData, error) {
	b.calls.Add(1)
	select {
	case <-b.release:
		return &KeywordData{Keyword: keyword, Volume: 700}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestCachedVolumeCancelledCallerDoesNotFailWaiters(t *testing.T) {
	bv := &blockingVolume{release: make(chan struct{})}
	cv := NewCachedVolume(bv, nil, time.Hour)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cv.KeywordData(firstCtx, "seo")
		firstErr <- err
	}()
	for bv.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	type result struct {
		data *KeywordData
		err  error
	}
	second := make(chan result, 1)
	go func() {
		d, err := cv.KeywordData(context.Background(), "seo")
		second <- result{d, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("first caller err = %v, want context.Canceled", err)
	}
	close(bv.release)

	r := <-second
	if r.err != nil || r.data == nil || r.data.Volume != 700 {
		t.Fatalf("second caller = %v, %v; want volume 700", r.data, r.err)
	}
	if n := bv.calls.Load(); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
}

func TestCachedVolumeDoesNotCacheErrors(t *testing.T) {
	fv := &fakeVolume{err: errors.New("boom")}
	cv := NewCachedVolume(fv, NewMemoryCache(), time.Hour)
	for i := 0; i < 2; i++ {
		if _, err := cv.KeywordData(context.Background(), "seo"); err == nil {
			t.Fatal("expected error")
		}
	}
	if n := fv.calls.Load(); n != 2 {
		t.Errorf("upstream calls = %d, want 2", n)
	}
}

func TestGuardedVolumeTrips(t *testing.T) {
	fv := &fakeVolume{err: errors.New("HTTP error: 500")}
	g := GuardVolume(fv)
	for i := 0; i < 3; i++ {
		g.KeywordData(context.Background(), "seo")
	}
	if g.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", g.State())
	}
	_, err := g.KeywordData(context.Background(), "seo")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("open breaker err = %v, want ErrUnavailable", err)
	}
	if n := fv.calls.Load(); n != 3 {
		t.Errorf("open breaker should not call upstream: calls = %d", n)
	}
}

func TestClassifyIntent(t *testing.T) {
	tests := map[string]model.Intent{
		"how to recover seo traffic":        model.IntentInformational,
		"best seo tools for agencies":       model.IntentCommercial,
		"semrush vs ahrefs":                 model.IntentCommercial,
		"ahrefs pricing discount":           model.IntentTransactional,
		"topical authority explained":       model.IntentInformational,
		"buy backlinks, best cheap options": model.IntentTransactional,
	}
	for text, want := range tests {
		if got := ClassifyIntent(text); got != want {
			t.Errorf("ClassifyIntent(%q) = %s, want %s", text, got, want)
		}
	}
}

func TestDemandFromVolume(t *testing.T) {
	tests := []struct {
		volume int
		want   model.DemandLevel
	}{
		{0, model.DemandLow},
		{99, model.DemandLow},
		{100, model.DemandMedium},
		{999, model.DemandMedium},
		{1000, model.DemandHigh},
	}
	for _, tt := range tests {
		if got := DemandFromVolume(tt.volume); got != tt.want {
			t.Errorf("DemandFromVolume(%d) = %s, want %s", tt.volume, got, tt.want)
		}
	}
}

func TestAdapterNoProviders(t *testing.T) {
	a := NewAdapter(nil, nil, AdapterConfig{}, nil)
	si := a.Build(context.Background(), []string{"seo", "traffic"}, "SEO traffic", nil)
	if si.HasData || si.DemandLevel != model.DemandUnknown || si.OpportunityType != model.DemandCreation {
		t.Errorf("degraded record = %+v", si)
	}
	if si.TrendDirection != model.TrendStable {
		t.Errorf("trend = %s, want stable", si.TrendDirection)
	}
}

func TestAdapterVolumeDrivesDemand(t *testing.T) {
	fv := &fakeVolume{data: map[string]int{"seo": 4000, "traffic": 300}}
	a := NewAdapter(fv, nil, AdapterConfig{}, nil)
	si := a.Build(context.Background(), []string{"seo", "traffic"}, "Traffic fell off a cliff", nil)

	if !si.DataSources.RealVolume || si.SearchVolume == nil || *si.SearchVolume != 4000 {
		t.Fatalf("volume data = %+v", si)
	}
	if si.DemandLevel != model.DemandHigh || si.OpportunityType != model.DemandCapture {
		t.Errorf("demand = %s/%s, want high/demand_capture", si.DemandLevel, si.OpportunityType)
	}
	if si.PrimaryKeyword != "seo" {
		t.Errorf("primary keyword = %q, want seo", si.PrimaryKeyword)
	}
}

func TestAdapterRankImpressionsNeverSetDemand(t *testing.T) {
	fr := &fakeRank{rows: []RankRow{
		{Query: "seo traffic drop", Impressions: 90_000, Clicks: 800, Position: 12},
		{Query: "traffic recovery", Impressions: 120_000, Clicks: 50, Position: 4.2},
		{Query: "cooking tips", Impressions: 1_000_000, Position: 1},
	}}
	a := NewAdapter(nil, fr, AdapterConfig{}, nil)
	si := a.Build(context.Background(), []string{"seo", "traffic"}, "SEO traffic", &model.ClientContext{SiteURL: "https://example.com"})

	if !si.HasData || !si.DataSources.RankTracking || si.DataSources.RealVolume {
		t.Fatalf("data sources = %+v", si.DataSources)
	}
	if si.DemandLevel != model.DemandUnknown || si.OpportunityType != model.DemandCreation {
		t.Errorf("rank data must not set demand: %s/%s", si.DemandLevel, si.OpportunityType)
	}
	if si.TotalImpressions != 210_000 || si.TotalClicks != 850 {
		t.Errorf("totals = %d/%d", si.TotalImpressions, si.TotalClicks)
	}
	if si.BestPosition == nil || *si.BestPosition != 4.2 {
		t.Errorf("best position = %v", si.BestPosition)
	}
	if si.PrimaryKeyword != "traffic recovery" {
		t.Errorf("primary keyword fallback = %q", si.PrimaryKeyword)
	}
}

func TestAdapterSkipsRankWithoutSite(t *testing.T) {
	fr := &fakeRank{rows: []RankRow{{Query: "seo", Impressions: 10, Position: 3}}}
	a := NewAdapter(nil, fr, AdapterConfig{}, nil)
	si := a.Build(context.Background(), []string{"seo"}, "seo", &model.ClientContext{})
	if si.DataSources.RankTracking {
		t.Error("rank tracking should need a site url")
	}
}

func TestAdapterDegradesOnErrors(t *testing.T) {
	a := NewAdapter(&fakeVolume{err: ErrUnavailable}, &fakeRank{err: errors.New("boom")}, AdapterConfig{}, nil)
	si := a.Build(context.Background(), []string{"seo"}, "seo", &model.ClientContext{SiteURL: "https://example.com"})
	if diff := cmp.Diff(model.NoSearchData(), si); diff != "" {
		t.Errorf("degraded record mismatch (-want +got):\n%s", diff)
	}
}

package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/abelbrown/viralengine/internal/model"
)

// fast removes rate limiting and backoff delays for tests.
func fast(g *httpGetter) {
	g.limiter = rate.NewLimiter(rate.Inf, 1)
	g.backoffs = []time.Duration{time.Millisecond, time.Millisecond}
}

const redditJSON = `{"data":{"children":[
 {"data":{"id":"p1","title":"SEO traffic dropped 40% after the update","selftext":"<b>Anyone</b> else   seeing this?","author":"alice","subreddit":"SEO","permalink":"/r/SEO/comments/p1/x/","url":"https://example.com","ups":150,"num_comments":42,"upvote_ratio":0.93,"created_utc":1767225600}},
 {"data":{"id":"p0","title":"Weekly thread","stickied":true,"ups":5}},
 {"data":{"id":"p2","title":"Content briefs that writers love","author":"bob","subreddit":"SEO","permalink":"/r/SEO/comments/p2/y/","ups":40,"num_comments":10,"upvote_ratio":0.8,"created_utc":1767229200}}
]}}`

func TestRedditSourceFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/r/SEO/hot.json") {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("limit") != "25" {
			t.Errorf("limit = %q", r.URL.Query().Get("limit"))
		}
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("user agent = %q", ua)
		}
		w.Write([]byte(redditJSON))
	}))
	defer server.Close()

	src := NewRedditSource(RedditConfig{Communities: []string{"SEO"}, Limit: 25, UserAgent: "test-agent", BaseURL: server.URL})
	fast(src.http)

	sigs, err := src.FetchSignals(context.Background(), Options{Industry: "marketing"})
	if err != nil {
		t.Fatalf("FetchSignals: %v", err)
	}
	if len(sigs) != 2 {
		t.Fatalf("got %d signals, want 2 (stickied skipped)", len(sigs))
	}

	got := sigs[0]
	if got.SourceType != model.SourceReddit || got.ExternalID != "p1" {
		t.Errorf("key = %s/%s", got.SourceType, got.ExternalID)
	}
	if got.Metrics.Upvotes != 150 || got.Metrics.Comments != 42 || got.Metrics.UpvoteRatio != 0.93 {
		t.Errorf("metrics = %+v", got.Metrics)
	}
	if got.URL != server.URL+"/r/SEO/comments/p1/x/" {
		t.Errorf("url = %q", got.URL)
	}
	if got.RawExcerpt != "Anyone else seeing this?" {
		t.Errorf("excerpt = %q", got.RawExcerpt)
	}
	if got.Industry != "marketing" || got.Community != "SEO" {
		t.Errorf("industry/community = %q/%q", got.Industry, got.Community)
	}
	if !got.CreatedAtExternal.Equal(time.Unix(1767225600, 0)) {
		t.Errorf("created = %v", got.CreatedAtExternal)
	}
}

func TestRedditSourcePartialAndTotalFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/r/good/") {
			w.Write([]byte(redditJSON))
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	partial := NewRedditSource(RedditConfig{Communities: []string{"good", "private"}, BaseURL: server.URL})
	fast(partial.http)
	sigs, err := partial.FetchSignals(context.Background(), Options{})
	if err != nil {
		t.Fatalf("partial failure should not error: %v", err)
	}
	if len(sigs) != 2 {
		t.Errorf("got %d signals, want 2", len(sigs))
	}

	total := NewRedditSource(RedditConfig{Communities: []string{"private"}, BaseURL: server.URL})
	fast(total.http)
	if _, err := total.FetchSignals(context.Background(), Options{}); err == nil {
		t.Error("expected error when every community fails")
	}
}

func TestRedditSourceAvailable(t *testing.T) {
	if NewRedditSource(RedditConfig{}).Available() {
		t.Error("no communities should be unavailable")
	}
	if !NewRedditSource(RedditConfig{Communities: []string{"x"}}).Available() {
		t.Error("configured source should be available")
	}
}

func TestHTTPGetterRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	g := newHTTPGetter(5*time.Second, time.Millisecond, "")
	fast(g)
	body, err := g.get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(body) != "ok" || calls.Load() != 3 {
		t.Errorf("body=%q calls=%d", body, calls.Load())
	}
}

func TestHTTPGetterDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	g := newHTTPGetter(5*time.Second, time.Millisecond, "")
	fast(g)
	if _, err := g.get(context.Background(), server.URL); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestHTTPGetterGivesUp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	g := newHTTPGetter(5*time.Second, time.Millisecond, "")
	fast(g)
	_, err := g.get(context.Background(), server.URL)
	if err == nil || !strings.Contains(err.Error(), "after 2 retries") {
		t.Errorf("err = %v", err)
	}
}

func TestHNSourceFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("tags") != "front_page" {
			t.Errorf("tags = %q", r.URL.Query().Get("tags"))
		}
		w.Write([]byte(`{"hits":[
			{"objectID":"101","title":"Show HN: keyword clustering in 200 lines","url":"https://example.com/kc","author":"carol","points":320,"num_comments":88,"created_at_i":1767225600},
			{"objectID":"102","title":"Ask HN: how do you track content ROI?","author":"dan","points":45,"num_comments":30,"story_text":"<p>Curious</p>"},
			{"objectID":"103","title":""}
		]}`))
	}))
	defer server.Close()

	src := NewHNSource(HNConfig{BaseURL: server.URL})
	fast(src.http)
	sigs, err := src.FetchSignals(context.Background(), Options{Industry: "saas"})
	if err != nil {
		t.Fatal(err)
	}
	if len(sigs) != 2 {
		t.Fatalf("got %d, want 2", len(sigs))
	}
	if sigs[0].SourceType != model.SourceHN || sigs[0].Metrics.Upvotes != 320 {
		t.Errorf("first = %+v", sigs[0])
	}
	if sigs[1].URL != "https://news.ycombinator.com/item?id=102" || sigs[1].RawExcerpt != "Curious" {
		t.Errorf("second = %+v", sigs[1])
	}
}

const rssXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <item>
      <title>Article 1</title>
      <link>http://example.com/article1</link>
      <guid>guid-1</guid>
      <description>First &lt;em&gt;article&lt;/em&gt;</description>
      <pubDate>Mon, 01 Jan 2024 12:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Article 2</title>
      <link>http://example.com/article2</link>
      <description>Second article</description>
    </item>
  </channel>
</rss>`

func TestRSSSourceFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssXML))
	}))
	defer server.Close()

	src := NewRSSSource("Test Feed", server.URL, "", time.Second)
	fast(src.http)
	sigs, err := src.FetchSignals(context.Background(), Options{Industry: "marketing"})
	if err != nil {
		t.Fatalf("FetchSignals: %v", err)
	}
	if len(sigs) != 2 {
		t.Fatalf("got %d, want 2", len(sigs))
	}
	if sigs[0].ExternalID != hashString("guid-1") {
		t.Errorf("external id should hash the GUID")
	}
	if sigs[1].ExternalID != hashString("http://example.com/article2") {
		t.Errorf("external id should fall back to the link")
	}
	if sigs[0].RawExcerpt != "First article" {
		t.Errorf("excerpt = %q", sigs[0].RawExcerpt)
	}
	if sigs[0].Metrics.Engagement() != 0 {
		t.Errorf("rss metrics should be zero")
	}
	if src.Name() != "rss:Test Feed" {
		t.Errorf("name = %q", src.Name())
	}

	limited, _ := src.FetchSignals(context.Background(), Options{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("limit ignored: %d", len(limited))
	}
}

func TestRSSSourceFetch404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	src := NewRSSSource("Bad", server.URL, "", time.Second)
	fast(src.http)
	if _, err := src.FetchSignals(context.Background(), Options{}); err == nil {
		t.Error("expected error for 404")
	}
}

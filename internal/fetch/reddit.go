package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/abelbrown/viralengine/internal/logging"
	"github.com/abelbrown/viralengine/internal/model"
)

const redditBase = "https://www.reddit.com"

// RedditSource reads subreddit listings through Reddit's public JSON API.
type RedditSource struct {
	communities []string
	sort        string
	limit       int
	base        string
	http        *httpGetter
}

// RedditConfig configures NewRedditSource.
type RedditConfig struct {
	Communities []string
	Sort        string // hot, new, top, rising
	Limit       int
	UserAgent   string
	Timeout     time.Duration
	// BaseURL overrides https://www.reddit.com.
	BaseURL string
}

// NewRedditSource creates a Reddit provider. Reddit asks unauthenticated
// clients to stay near one request per second.
func NewRedditSource(cfg RedditConfig) *RedditSource {
	if cfg.Sort == "" {
		cfg.Sort = "hot"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = redditBase
	}
	return &RedditSource{
		communities: cfg.Communities,
		sort:        cfg.Sort,
		limit:       cfg.Limit,
		base:        strings.TrimRight(cfg.BaseURL, "/"),
		http:        newHTTPGetter(cfg.Timeout, time.Second, cfg.UserAgent),
	}
}

func (s *RedditSource) Name() string {
	return "reddit"
}

// Available is true when at least one community is configured.
func (s *RedditSource) Available() bool {
	return len(s.communities) > 0
}

// FetchSignals reads every configured community. A failing community is
// logged and skipped; the call only fails when every community fails.
func (s *RedditSource) FetchSignals(ctx context.Context, opts Options) ([]model.NormalizedSignal, error) {
	limit := s.limit
	if opts.Limit > 0 {
		limit = opts.Limit
	}

	var (
		out     []model.NormalizedSignal
		lastErr error
		failed  int
	)
	for _, community := range s.communities {
		sigs, err := s.fetchCommunity(ctx, community, limit, opts.Industry)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failed++
			lastErr = err
			logging.Warn("reddit community fetch failed", "community", community, "err", err)
			continue
		}
		out = append(out, sigs...)
	}

	if failed > 0 && failed == len(s.communities) {
		return nil, fmt.Errorf("all %d reddit communities failed: %w", failed, lastErr)
	}
	return out, nil
}

func (s *RedditSource) fetchCommunity(ctx context.Context, community string, limit int, industry string) ([]model.NormalizedSignal, error) {
	u := fmt.Sprintf("%s/r/%s/%s.json?limit=%d&raw_json=1", s.base, url.PathEscape(community), s.sort, limit)
	body, err := s.http.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("r/%s: %w", community, err)
	}

	var listing redditListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("r/%s: parse listing: %w", community, err)
	}

	sigs := make([]model.NormalizedSignal, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		p := child.Data
		if p.Stickied || p.ID == "" {
			continue
		}
		sigs = append(sigs, s.convert(p, industry))
	}
	return sigs, nil
}

func (s *RedditSource) convert(p redditPost, industry string) model.NormalizedSignal {
	link := p.URL
	if p.Permalink != "" {
		link = s.base + p.Permalink
	}
	var created time.Time
	if p.CreatedUTC > 0 {
		created = time.Unix(int64(p.CreatedUTC), 0).UTC()
	}
	return model.NormalizedSignal{
		SourceType:        model.SourceReddit,
		ExternalID:        p.ID,
		URL:               link,
		Title:             strings.TrimSpace(p.Title),
		Author:            p.Author,
		Community:         p.Subreddit,
		CreatedAtExternal: created,
		Metrics: model.Metrics{
			Upvotes:     p.Ups,
			Comments:    p.NumComments,
			UpvoteRatio: p.UpvoteRatio,
		},
		RawExcerpt: model.TruncateExcerpt(cleanText(p.Selftext)),
		Industry:   industry,
	}
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	Permalink   string  `json:"permalink"`
	URL         string  `json:"url"`
	Ups         int     `json:"ups"`
	NumComments int     `json:"num_comments"`
	UpvoteRatio float64 `json:"upvote_ratio"`
	CreatedUTC  float64 `json:"created_utc"`
	Stickied    bool    `json:"stickied"`
}

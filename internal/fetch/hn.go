package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/abelbrown/viralengine/internal/model"
)

const hnSearchBase = "https://hn.algolia.com/api/v1"

// HNSource reads Hacker News stories through the Algolia search API.
type HNSource struct {
	query string
	tags  string
	limit int
	base  string
	http  *httpGetter
}

// HNConfig configures NewHNSource.
type HNConfig struct {
	// Query restricts stories to a search phrase. Empty reads the front page.
	Query     string
	Limit     int
	UserAgent string
	Timeout   time.Duration
	BaseURL   string
}

// NewHNSource creates a Hacker News provider.
func NewHNSource(cfg HNConfig) *HNSource {
	if cfg.Limit <= 0 {
		cfg.Limit = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = hnSearchBase
	}
	tags := "front_page"
	if cfg.Query != "" {
		tags = "story"
	}
	return &HNSource{
		query: cfg.Query,
		tags:  tags,
		limit: cfg.Limit,
		base:  strings.TrimRight(cfg.BaseURL, "/"),
		http:  newHTTPGetter(cfg.Timeout, 500*time.Millisecond, cfg.UserAgent),
	}
}

func (s *HNSource) Name() string {
	if s.query != "" {
		return "hn:" + s.query
	}
	return "hn"
}

// Available is always true; the API needs no credentials.
func (s *HNSource) Available() bool {
	return true
}

// FetchSignals returns current stories with points and comment counts.
func (s *HNSource) FetchSignals(ctx context.Context, opts Options) ([]model.NormalizedSignal, error) {
	limit := s.limit
	if opts.Limit > 0 {
		limit = opts.Limit
	}

	q := url.Values{}
	q.Set("tags", s.tags)
	q.Set("hitsPerPage", fmt.Sprint(limit))
	endpoint := s.base + "/search"
	if s.query != "" {
		q.Set("query", s.query)
		endpoint = s.base + "/search_by_date"
	}

	body, err := s.http.get(ctx, endpoint+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("hacker news: %w", err)
	}

	var res hnSearchResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("hacker news: parse response: %w", err)
	}

	sigs := make([]model.NormalizedSignal, 0, len(res.Hits))
	for _, h := range res.Hits {
		if h.ObjectID == "" || strings.TrimSpace(h.Title) == "" {
			continue
		}
		link := h.URL
		if link == "" {
			link = "https://news.ycombinator.com/item?id=" + h.ObjectID
		}
		var created time.Time
		if h.CreatedAtI > 0 {
			created = time.Unix(h.CreatedAtI, 0).UTC()
		}
		sigs = append(sigs, model.NormalizedSignal{
			SourceType:        model.SourceHN,
			ExternalID:        h.ObjectID,
			URL:               link,
			Title:             strings.TrimSpace(h.Title),
			Author:            h.Author,
			Community:         "hackernews",
			CreatedAtExternal: created,
			Metrics: model.Metrics{
				Upvotes:  h.Points,
				Comments: h.NumComments,
			},
			RawExcerpt: model.TruncateExcerpt(cleanText(h.StoryText)),
			Industry:   opts.Industry,
		})
	}
	return sigs, nil
}

type hnSearchResponse struct {
	Hits []hnHit `json:"hits"`
}

type hnHit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Author      string `json:"author"`
	Points      int    `json:"points"`
	NumComments int    `json:"num_comments"`
	CreatedAtI  int64  `json:"created_at_i"`
	StoryText   string `json:"story_text"`
}

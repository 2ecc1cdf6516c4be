package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DefaultSearchConsoleURL is the Search Console API root.
const DefaultSearchConsoleURL = "https://www.googleapis.com/webmasters/v3"

// SearchConsoleConfig configures the rank-tracking provider.
type SearchConsoleConfig struct {
	AccessToken       string
	Timeout           time.Duration
	RequestsPerSecond float64
	RowLimit          int
	BaseURL           string // tests
}

// SearchConsole is a RankProvider backed by the Search Console
// searchanalytics API.
type SearchConsole struct {
	cfg    SearchConsoleConfig
	client *apiClient
}

// NewSearchConsole creates the provider. It is unavailable without a token.
func NewSearchConsole(cfg SearchConsoleConfig) *SearchConsole {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSearchConsoleURL
	}
	if cfg.RowLimit <= 0 {
		cfg.RowLimit = 1000
	}
	return &SearchConsole{cfg: cfg, client: newAPIClient(cfg.Timeout, cfg.RequestsPerSecond)}
}

func (s *SearchConsole) Name() string { return "search_console" }

// Available reports whether an access token is configured.
func (s *SearchConsole) Available() bool { return s.cfg.AccessToken != "" }

type gscRequest struct {
	StartDate  string   `json:"startDate"`
	EndDate    string   `json:"endDate"`
	Dimensions []string `json:"dimensions"`
	RowLimit   int      `json:"rowLimit"`
}

type gscResponse struct {
	Rows []struct {
		Keys        []string `json:"keys"`
		Clicks      float64  `json:"clicks"`
		Impressions float64  `json:"impressions"`
		CTR         float64  `json:"ctr"`
		Position    float64  `json:"position"`
	} `json:"rows"`
}

// Query returns one row per first dimension key (the query text when
// dimensions is ["query"]).
func (s *SearchConsole) Query(ctx context.Context, siteURL string, dr DateRange, dimensions []string) ([]RankRow, error) {
	if !s.Available() || siteURL == "" {
		return nil, ErrUnavailable
	}
	if len(dimensions) == 0 {
		dimensions = []string{"query"}
	}

	endpoint := fmt.Sprintf("%s/sites/%s/searchAnalytics/query", s.cfg.BaseURL, url.PathEscape(siteURL))
	body := gscRequest{
		StartDate:  dr.Start.Format(time.DateOnly),
		EndDate:    dr.End.Format(time.DateOnly),
		Dimensions: dimensions,
		RowLimit:   s.cfg.RowLimit,
	}
	var resp gscResponse
	auth := func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+s.cfg.AccessToken) }
	if err := s.client.postJSON(ctx, endpoint, auth, body, &resp); err != nil {
		return nil, fmt.Errorf("search console: %w", err)
	}

	rows := make([]RankRow, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		if len(r.Keys) == 0 {
			continue
		}
		rows = append(rows, RankRow{
			Query:       r.Keys[0],
			Impressions: int(r.Impressions),
			Clicks:      int(r.Clicks),
			CTR:         r.CTR,
			Position:    r.Position,
		})
	}
	return rows, nil
}

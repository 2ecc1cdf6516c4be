package search

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultDataForSEOURL is the live Google Ads search-volume endpoint.
const DefaultDataForSEOURL = "https://api.dataforseo.com/v3/keywords_data/google_ads/search_volume/live"

// DataForSEOConfig configures the volume provider.
type DataForSEOConfig struct {
	Login             string
	Password          string
	LocationCode      int // 2840 = United States
	LanguageCode      string
	Timeout           time.Duration
	RequestsPerSecond float64
	BaseURL           string // tests
}

// DataForSEO is a VolumeProvider backed by the DataForSEO keywords API.
type DataForSEO struct {
	cfg    DataForSEOConfig
	client *apiClient
}

// NewDataForSEO creates the provider. It is unavailable without credentials.
func NewDataForSEO(cfg DataForSEOConfig) *DataForSEO {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultDataForSEOURL
	}
	if cfg.LocationCode == 0 {
		cfg.LocationCode = 2840
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en"
	}
	return &DataForSEO{cfg: cfg, client: newAPIClient(cfg.Timeout, cfg.RequestsPerSecond)}
}

func (d *DataForSEO) Name() string { return "dataforseo" }

// Available reports whether credentials are configured.
func (d *DataForSEO) Available() bool {
	return d.cfg.Login != "" && d.cfg.Password != ""
}

type dfsTask struct {
	Keywords     []string `json:"keywords"`
	LocationCode int      `json:"location_code"`
	LanguageCode string   `json:"language_code"`
}

type dfsResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Tasks         []struct {
		StatusCode    int    `json:"status_code"`
		StatusMessage string `json:"status_message"`
		Result        []struct {
			Keyword          string   `json:"keyword"`
			SearchVolume     *int     `json:"search_volume"`
			CompetitionIndex *float64 `json:"competition_index"`
		} `json:"result"`
	} `json:"tasks"`
}

// KeywordData returns volume and difficulty for keyword, or nil when the
// API has no volume for it.
func (d *DataForSEO) KeywordData(ctx context.Context, keyword string) (*KeywordData, error) {
	if !d.Available() {
		return nil, ErrUnavailable
	}
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return nil, nil
	}

	body := []dfsTask{{Keywords: []string{keyword}, LocationCode: d.cfg.LocationCode, LanguageCode: d.cfg.LanguageCode}}
	var resp dfsResponse
	auth := func(r *http.Request) { r.SetBasicAuth(d.cfg.Login, d.cfg.Password) }
	if err := d.client.postJSON(ctx, d.cfg.BaseURL, auth, body, &resp); err != nil {
		return nil, fmt.Errorf("dataforseo %q: %w", keyword, err)
	}
	if resp.StatusCode != 0 && resp.StatusCode != 20000 {
		return nil, fmt.Errorf("dataforseo %q: status %d %s", keyword, resp.StatusCode, resp.StatusMessage)
	}

	for _, task := range resp.Tasks {
		if task.StatusCode != 0 && task.StatusCode != 20000 {
			return nil, fmt.Errorf("dataforseo %q: task status %d %s", keyword, task.StatusCode, task.StatusMessage)
		}
		for _, r := range task.Result {
			if r.SearchVolume == nil {
				continue
			}
			return &KeywordData{
				Keyword:    r.Keyword,
				Volume:     *r.SearchVolume,
				Difficulty: r.CompetitionIndex,
			}, nil
		}
	}
	return nil, nil
}

package main

import (
	"context"

	"github.com/abelbrown/viralengine/internal/brain"
	"github.com/abelbrown/viralengine/internal/brief"
	"github.com/abelbrown/viralengine/internal/correlation"
	"github.com/abelbrown/viralengine/internal/fetch"
	"github.com/abelbrown/viralengine/internal/filter"
	"github.com/abelbrown/viralengine/internal/gates"
	"github.com/abelbrown/viralengine/internal/ingest"
	"github.com/abelbrown/viralengine/internal/logging"
	"github.com/abelbrown/viralengine/internal/model"
	"github.com/abelbrown/viralengine/internal/opportunity"
	"github.com/abelbrown/viralengine/internal/search"
)

// sources builds every configured signal provider.
func (a *app) sources() []fetch.Source {
	cfg := a.cfg.Sources
	timeout := a.cfg.Ingest.FetchTimeout

	var out []fetch.Source
	if len(cfg.Reddit.Communities) > 0 {
		out = append(out, fetch.NewRedditSource(fetch.RedditConfig{
			Communities: cfg.Reddit.Communities,
			Sort:        cfg.Reddit.Sort,
			Limit:       cfg.Reddit.Limit,
			UserAgent:   cfg.UserAgent,
			Timeout:     timeout,
		}))
	}
	if cfg.HackerNews.Enabled {
		out = append(out, fetch.NewHNSource(fetch.HNConfig{
			Query:     cfg.HackerNews.Query,
			Limit:     cfg.HackerNews.Limit,
			UserAgent: cfg.UserAgent,
			Timeout:   timeout,
		}))
	}
	for _, f := range cfg.Feeds {
		out = append(out, fetch.NewRSSSource(f.Name, f.URL, cfg.UserAgent, timeout))
	}
	return out
}

func (a *app) pipeline() *ingest.Pipeline {
	spam := filter.NewSpam(filter.SpamConfig{
		Blocklist:          a.cfg.Spam.Blocklist,
		CapsMinLength:      a.cfg.Spam.CapsMinLength,
		SpecialCharDensity: a.cfg.Spam.SpecialCharDensity,
	})
	return ingest.New(a.store, a.sources(), spam, ingest.Config{
		CacheWindow:   a.cfg.Ingest.CacheWindow,
		FetchTimeout:  a.cfg.Ingest.FetchTimeout,
		MaxConcurrent: a.cfg.Ingest.MaxConcurrent,
	}, a.metrics)
}

// searchAdapter wires the volume and rank providers behind caches and
// breakers. Providers without credentials are left out.
func (a *app) searchAdapter(ctx context.Context) *search.Adapter {
	cfg := a.cfg.Search

	var volume search.VolumeProvider
	dfs := search.NewDataForSEO(search.DataForSEOConfig{
		Login:             cfg.DataForSEOLogin,
		Password:          cfg.DataForSEOPassword,
		LocationCode:      cfg.LocationCode,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
	if dfs.Available() {
		var cache search.Cache = search.NewMemoryCache()
		if cfg.RedisURL != "" {
			client, err := search.DialRedis(ctx, cfg.RedisURL)
			if err != nil {
				logging.Warn("redis unavailable, using memory cache", "error", err)
			} else {
				cache = search.NewRedisCache(client, "")
			}
		}
		volume = search.NewCachedVolume(search.GuardVolume(dfs), cache, cfg.CacheTTL)
	}

	var rank search.RankProvider
	gsc := search.NewSearchConsole(search.SearchConsoleConfig{
		AccessToken:       cfg.GSCAccessToken,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
	if gsc.Available() {
		rank = search.GuardRank(gsc)
	}

	return search.NewAdapter(volume, rank, search.AdapterConfig{DateRangeDays: cfg.DateRangeDays}, a.metrics)
}

func (a *app) builder(ctx context.Context) *opportunity.Builder {
	clusterer := correlation.NewClusterer(a.cfg.Clustering.Stopwords, a.cfg.Clustering.StandaloneUpvotes)
	evaluator := gates.NewEvaluator(gates.Config{
		NegativeTerms: a.cfg.Gates.NegativeTerms,
		Stopwords:     a.cfg.Clustering.Stopwords,
	})
	return opportunity.New(a.store, clusterer, a.searchAdapter(ctx), evaluator, opportunity.Config{
		Window:       a.cfg.Clustering.Window,
		MaxSignals:   a.cfg.Clustering.MaxSignals,
		BatchSize:    a.cfg.Builder.BatchSize,
		InsertChunk:  a.cfg.Builder.InsertChunk,
		Limit:        a.cfg.Builder.Limit,
		EnforceGates: a.cfg.Builder.EnforceGates,
		Channels:     a.cfg.Builder.Channels,
		Seasonality:  a.cfg.Scoring.Seasonality,
	}, a.metrics)
}

func (a *app) workflow() *brief.Workflow {
	gen := brain.FromConfig(a.cfg.Generator, a.metrics)
	return brief.New(a.store, gen, brief.Config{MaxTokens: a.cfg.Generator.MaxTokens}, a.metrics)
}

// client returns the configured client context, or nil when none is set.
func (a *app) client() *model.ClientContext {
	c := a.cfg.Client
	if c.ClientID == "" && c.Industry == "" && c.SiteURL == "" &&
		len(c.Competitors) == 0 && len(c.ClusterTaxonomy) == 0 && len(c.ExistingContent) == 0 {
		return nil
	}
	return &c
}

// Package opportunity turns recent signals into scored, gated, channel
// specific content opportunities and persists them.
package opportunity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/viralengine/internal/channel"
	"github.com/abelbrown/viralengine/internal/correlation"
	"github.com/abelbrown/viralengine/internal/gates"
	"github.com/abelbrown/viralengine/internal/logging"
	"github.com/abelbrown/viralengine/internal/metrics"
	"github.com/abelbrown/viralengine/internal/model"
	"github.com/abelbrown/viralengine/internal/ranking"
	"github.com/abelbrown/viralengine/internal/store"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultWindow      = 7 * 24 * time.Hour
	DefaultMaxSignals  = 200
	DefaultBatchSize   = 5
	DefaultInsertChunk = 50
	DefaultLimit       = 20
)

// BatchError is a failed opportunity insert chunk. Other chunks are
// unaffected.
type BatchError struct {
	Batch int // zero-based chunk index
	Size  int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("opportunity batch %d (%d rows): %v", e.Batch, e.Size, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Store is the subset of the store the builder reads and writes.
type Store interface {
	RecentSignals(ctx context.Context, industry string, since time.Time, limit int) ([]model.Signal, error)
	InsertOpportunityBatch(ctx context.Context, opps []model.Opportunity) error
	GetOpportunity(ctx context.Context, id string) (model.Opportunity, error)
	ListOpportunities(ctx context.Context, f store.OpportunityFilter) ([]model.Opportunity, error)
	UpdateOpportunityStatus(ctx context.Context, id string, from, to model.OpportunityStatus, now time.Time) error
}

// SearchIntel builds per-topic search intelligence. It must not fail; a
// provider outage degrades to "no data".
type SearchIntel interface {
	Build(ctx context.Context, keywords []string, topic string, client *model.ClientContext) model.SearchIntelligence
}

// Config controls a Builder.
type Config struct {
	Window       time.Duration
	MaxSignals   int
	BatchSize    int // clusters processed concurrently
	InsertChunk  int
	Limit        int
	EnforceGates bool
	Channels     []model.Channel
	Seasonality  float64
}

// Options are per-build parameters.
type Options struct {
	Industry         string
	IndustryKeywords []string
	Client           *model.ClientContext // may be nil
	Channels         []model.Channel      // empty uses Config.Channels
	Limit            int                  // zero uses Config.Limit
}

// Result summarises one build.
type Result struct {
	Signals    int
	Clusters   int
	Blocked    int // clusters dropped by a failing gate
	Candidates int // opportunities before the limit
	// Opportunities holds the rows that were persisted, best first.
	Opportunities []model.Opportunity
	Errors        []error
	Duration      time.Duration
}

// Err joins every recorded error, or nil.
func (r Result) Err() error {
	return errors.Join(r.Errors...)
}

// Builder orchestrates clustering, scoring, search intelligence, gates and
// channel scoring. It holds no per-build state.
type Builder struct {
	store     Store
	clusterer *correlation.Clusterer
	search    SearchIntel
	gates     *gates.Evaluator
	cfg       Config
	metrics   *metrics.Metrics
	now       func() time.Time
}

// New creates a Builder. m may be nil.
func New(st Store, clusterer *correlation.Clusterer, si SearchIntel, ev *gates.Evaluator, cfg Config, m *metrics.Metrics) *Builder {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxSignals <= 0 {
		cfg.MaxSignals = DefaultMaxSignals
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.InsertChunk <= 0 {
		cfg.InsertChunk = DefaultInsertChunk
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if len(cfg.Channels) == 0 {
		cfg.Channels = model.AllChannels
	}
	if cfg.Seasonality == 0 {
		cfg.Seasonality = ranking.DefaultSeasonality
	}
	return &Builder{
		store:     st,
		clusterer: clusterer,
		search:    si,
		gates:     ev,
		cfg:       cfg,
		metrics:   metrics.OrNop(m),
		now:       time.Now,
	}
}

// candidate carries a cluster's position so the final order is stable.
type candidate struct {
	opp     model.Opportunity
	cluster int
	channel int
}

// Build loads recent signals, builds opportunities and persists the best
// ones. The error is non-nil only when signals could not be loaded; insert
// failures are collected in Result.Errors.
func (b *Builder) Build(ctx context.Context, opts Options) (Result, error) {
	start := time.Now()
	now := b.now()
	var res Result

	signals, err := b.store.RecentSignals(ctx, opts.Industry, now.Add(-b.cfg.Window), b.cfg.MaxSignals)
	if err != nil {
		return res, fmt.Errorf("load signals: %w", err)
	}
	res.Signals = len(signals)
	if len(signals) == 0 {
		logging.Info("build: no recent signals", "industry", opts.Industry)
		res.Duration = time.Since(start)
		return res, nil
	}

	clusters := b.clusterer.Cluster(signals)
	res.Clusters = len(clusters)
	for _, c := range clusters {
		kind := "group"
		if c.Standalone {
			kind = "standalone"
		}
		b.metrics.ClustersBuilt.WithLabelValues(kind).Inc()
	}

	channels := opts.Channels
	if len(channels) == 0 {
		channels = b.cfg.Channels
	}
	rctx := ranking.NewContext(now, opts.IndustryKeywords).WithSeasonality(b.cfg.Seasonality)

	perCluster := make([][]candidate, len(clusters))
	var blocked int
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.BatchSize)
	for i, c := range clusters {
		g.Go(func() error {
			cands, ok := b.processCluster(gctx, i, c, channels, rctx, opts, now)
			if !ok {
				mu.Lock()
				blocked++
				mu.Unlock()
			}
			perCluster[i] = cands
			return nil
		})
	}
	g.Wait() // workers never return errors
	res.Blocked = blocked

	var all []candidate
	for _, cands := range perCluster {
		all = append(all, cands...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].opp.Score != all[j].opp.Score {
			return all[i].opp.Score > all[j].opp.Score
		}
		if all[i].cluster != all[j].cluster {
			return all[i].cluster < all[j].cluster
		}
		return all[i].channel < all[j].channel
	})
	res.Candidates = len(all)

	limit := opts.Limit
	if limit <= 0 {
		limit = b.cfg.Limit
	}
	if len(all) > limit {
		all = all[:limit]
	}

	opps := make([]model.Opportunity, len(all))
	for i, c := range all {
		opps[i] = c.opp
	}
	res.Opportunities, res.Errors = b.persist(ctx, opps)
	res.Duration = time.Since(start)

	logging.Info("build complete",
		"signals", res.Signals,
		"clusters", res.Clusters,
		"blocked", res.Blocked,
		"candidates", res.Candidates,
		"persisted", len(res.Opportunities),
		"errors", len(res.Errors),
		"duration", res.Duration)
	return res, nil
}

// processCluster returns the cluster's opportunities, and false when a
// failing gate dropped it.
func (b *Builder) processCluster(ctx context.Context, idx int, c model.Cluster, channels []model.Channel, rctx *ranking.Context, opts Options, now time.Time) ([]candidate, bool) {
	topic := c.Topic()
	si := b.search.Build(ctx, c.Keywords, topic, opts.Client)
	breakdown := ranking.Score(c, rctx)
	viral := breakdown.Total()
	momentum := ranking.Momentum(breakdown)

	industry := opts.Industry
	if opts.Client != nil && opts.Client.Industry != "" {
		industry = opts.Client.Industry
	}
	sg := b.gates.Evaluate(gates.Input{
		Topic:         topic,
		Keywords:      c.Keywords,
		Signals:       c.Signals,
		Search:        si,
		Industry:      industry,
		IndustryTerms: opts.IndustryKeywords,
		Client:        opts.Client,
	})
	if !sg.AllPassed {
		b.metrics.GateFailures.WithLabelValues(gates.FirstFailure(sg)).Inc()
		if b.cfg.EnforceGates {
			logging.Debug("cluster blocked", "cluster", c.ID, "topic", topic, "blocked_by", sg.BlockedBy)
			return nil, false
		}
	}

	scores := channel.Score(channel.Input{
		ViralScore: viral,
		Momentum:   momentum,
		Engagement: c.TotalEngagement,
		Search:     si,
		Gates:      sg,
	})

	seo := &model.SEOData{
		SearchIntelligence: si,
		SearchDemandScore:  ranking.SearchDemandScore(si),
		Gates:              sg,
		ChannelScores:      scores,
		OpportunityType:    si.OpportunityType,
	}

	var out []candidate
	for ci, ch := range channels {
		if !scores.For(ch).Viable {
			continue
		}
		out = append(out, candidate{
			opp:     b.newOpportunity(c, ch, viral, breakdown, seo, opts, now),
			cluster: idx,
			channel: ci,
		})
	}

	if len(out) == 0 && sg.AllPassed {
		ch := scores.RecommendedChannel
		logging.Debug("no viable channel; using recommendation", "cluster", c.ID, "channel", ch)
		out = append(out, candidate{
			opp:     b.newOpportunity(c, ch, viral, breakdown, seo, opts, now),
			cluster: idx,
			channel: len(channels),
		})
	}
	return out, true
}

func (b *Builder) newOpportunity(c model.Cluster, ch model.Channel, viral float64, breakdown model.ScoreBreakdown, seo *model.SEOData, opts Options, now time.Time) model.Opportunity {
	clientID := ""
	if opts.Client != nil {
		clientID = opts.Client.ClientID
	}
	return model.Opportunity{
		ID:              uuid.NewString(),
		ClientID:        clientID,
		Industry:        opts.Industry,
		Channel:         ch,
		Topic:           c.Topic(),
		Angle:           angle(c, ch, seo.SearchIntelligence),
		Hook:            hook(c, ch),
		Reasoning:       reasoning(breakdown, seo, ch),
		Score:           viral,
		ScoreBreakdown:  breakdown,
		SourceSignalIDs: c.SignalIDs(),
		Status:          model.StatusNew,
		SEOData:         seo,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// persist inserts opps in independent chunks and returns the committed rows.
func (b *Builder) persist(ctx context.Context, opps []model.Opportunity) ([]model.Opportunity, []error) {
	var saved []model.Opportunity
	var errs []error
	for i, n := 0, 0; i < len(opps); i, n = i+b.cfg.InsertChunk, n+1 {
		end := min(i+b.cfg.InsertChunk, len(opps))
		chunk := opps[i:end]
		if err := b.store.InsertOpportunityBatch(ctx, chunk); err != nil {
			logging.Error("opportunity batch failed", "batch", n, "size", len(chunk), "error", err)
			b.metrics.OpportunityErrors.Inc()
			errs = append(errs, &BatchError{Batch: n, Size: len(chunk), Err: err})
			continue
		}
		for _, o := range chunk {
			b.metrics.Opportunities.WithLabelValues(string(o.Channel)).Inc()
		}
		saved = append(saved, chunk...)
	}
	return saved, errs
}

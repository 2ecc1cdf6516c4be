// Package ingest pulls signals from every configured source, drops spam and
// upserts the rest into the signal store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/viralengine/internal/fetch"
	"github.com/abelbrown/viralengine/internal/filter"
	"github.com/abelbrown/viralengine/internal/logging"
	"github.com/abelbrown/viralengine/internal/metrics"
	"github.com/abelbrown/viralengine/internal/model"
	"github.com/abelbrown/viralengine/internal/store"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultCacheWindow   = 6 * time.Hour
	DefaultFetchTimeout  = 30 * time.Second
	DefaultMaxConcurrent = 5
)

// ErrSourceUnavailable marks a source skipped because Available() was false.
var ErrSourceUnavailable = errors.New("source unavailable")

// SourceError is a fetch failure for one source.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// StoreError is a storage failure for one signal.
type StoreError struct {
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// SignalStore is the subset of the store the pipeline writes to.
type SignalStore interface {
	UpsertSignal(ctx context.Context, sig model.NormalizedSignal, now time.Time, cacheWindow time.Duration) (store.UpsertOutcome, string, error)
	RecordSourceFetch(ctx context.Context, name string, itemCount int, fetchErr error, at time.Time) error
}

// Config controls a Pipeline.
type Config struct {
	CacheWindow   time.Duration
	FetchTimeout  time.Duration
	MaxConcurrent int
}

// Options are per-run parameters passed through to the sources.
type Options struct {
	Industry string
	Limit    int
}

// Result summarises one ingestion run.
type Result struct {
	Inserted int
	Updated  int
	Skipped  int
	Filtered int
	Errors   []error
	// Success is false only when there were errors and nothing was
	// inserted or updated.
	Success  bool
	Duration time.Duration
}

// Err joins every recorded error, or nil.
func (r Result) Err() error {
	return errors.Join(r.Errors...)
}

// Pipeline runs ingestion. Sources are IMMUTABLE after construction.
type Pipeline struct {
	store   SignalStore
	sources []fetch.Source
	spam    *filter.Spam
	cfg     Config
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a Pipeline. m may be nil.
func New(st SignalStore, sources []fetch.Source, spam *filter.Spam, cfg Config, m *metrics.Metrics) *Pipeline {
	if cfg.CacheWindow <= 0 {
		cfg.CacheWindow = DefaultCacheWindow
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}

	sourcesCopy := make([]fetch.Source, len(sources))
	copy(sourcesCopy, sources)

	return &Pipeline{
		store:   st,
		sources: sourcesCopy,
		spam:    spam,
		cfg:     cfg,
		metrics: metrics.OrNop(m),
		now:     time.Now,
	}
}

// tally accumulates per-source outcomes under a mutex.
type tally struct {
	mu sync.Mutex
	r  Result
}

func (t *tally) add(fn func(r *Result)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.r)
}

// Run fetches all sources in parallel (bounded), filters spam and upserts
// each surviving signal. Source and storage failures are collected, never
// fatal to the batch.
func (p *Pipeline) Run(ctx context.Context, opts Options) Result {
	start := p.now()
	var t tally

	var g errgroup.Group
	g.SetLimit(p.cfg.MaxConcurrent)

	for _, src := range p.sources {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			p.ingestSource(ctx, src, opts, &t)
			return nil // never fail the group - errors reported per-source
		})
	}
	_ = g.Wait()

	r := t.r
	if ctx.Err() != nil {
		r.Errors = append(r.Errors, fmt.Errorf("ingest cancelled: %w", ctx.Err()))
	}
	r.Success = !(len(r.Errors) > 0 && r.Inserted+r.Updated == 0)
	r.Duration = p.now().Sub(start)

	result := "success"
	if !r.Success {
		result = "failure"
	}
	p.metrics.IngestRuns.WithLabelValues(result).Inc()
	logging.Info("ingest complete",
		"inserted", r.Inserted,
		"updated", r.Updated,
		"skipped", r.Skipped,
		"filtered", r.Filtered,
		"errors", len(r.Errors),
		"success", r.Success,
		"duration", r.Duration)
	return r
}

// ingestSource fetches a single source with timeout and writes its signals.
func (p *Pipeline) ingestSource(ctx context.Context, src fetch.Source, opts Options, t *tally) {
	name := src.Name()

	if !src.Available() {
		p.sourceFailed(ctx, name, ErrSourceUnavailable, t)
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	started := time.Now()
	sigs, err := src.FetchSignals(fetchCtx, fetch.Options{Industry: opts.Industry, Limit: opts.Limit})
	cancel()
	p.metrics.ObserveCall(name, started, err)
	if err != nil {
		p.sourceFailed(ctx, name, err, t)
		return
	}

	sigs = filter.Dedup(sigs)
	kept := sigs
	if p.spam != nil {
		var dropped map[filter.Reason]int
		kept, dropped = p.spam.Apply(sigs)
		for reason, n := range dropped {
			logging.Debug("spam filtered", "source", name, "reason", reason, "count", n)
		}
	}
	filtered := len(sigs) - len(kept)
	p.metrics.SignalsIngested.WithLabelValues(name, "filtered").Add(float64(filtered))
	t.add(func(r *Result) { r.Filtered += filtered })

	now := p.now()
	for _, sig := range kept {
		if sig.Industry == "" {
			sig.Industry = opts.Industry
		}
		outcome, _, err := p.store.UpsertSignal(ctx, sig, now, p.cfg.CacheWindow)
		if err != nil {
			logging.Warn("signal upsert failed", "source", name, "external_id", sig.ExternalID, "err", err)
			t.add(func(r *Result) {
				r.Errors = append(r.Errors, &StoreError{Key: string(sig.SourceType) + ":" + sig.ExternalID, Err: err})
			})
			continue
		}
		p.metrics.SignalsIngested.WithLabelValues(name, outcome.String()).Inc()
		t.add(func(r *Result) {
			switch outcome {
			case store.Inserted:
				r.Inserted++
			case store.Updated:
				r.Updated++
			default:
				r.Skipped++
			}
		})
	}

	if err := p.store.RecordSourceFetch(ctx, name, len(kept), nil, now); err != nil {
		logging.Warn("record source status failed", "source", name, "err", err)
	}
	logging.Debug("source ingested", "source", name, "fetched", len(sigs), "kept", len(kept))
}

func (p *Pipeline) sourceFailed(ctx context.Context, name string, err error, t *tally) {
	logging.Warn("source fetch failed", "source", name, "err", err)
	p.metrics.SourceErrors.WithLabelValues(name).Inc()
	t.add(func(r *Result) {
		r.Errors = append(r.Errors, &SourceError{Source: name, Err: err})
	})
	if recErr := p.store.RecordSourceFetch(ctx, name, 0, err, p.now()); recErr != nil {
		logging.Warn("record source status failed", "source", name, "err", recErr)
	}
}

// Package metrics defines the Prometheus collectors for the pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "viralengine"

// Metrics holds every collector. Components take a *Metrics; a nil value
// is replaced with Nop() so callers never nil-check.
type Metrics struct {
	registry prometheus.Gatherer

	SignalsIngested   *prometheus.CounterVec // source, outcome
	SourceErrors      *prometheus.CounterVec // source
	IngestRuns        *prometheus.CounterVec // result
	ClustersBuilt     *prometheus.CounterVec // kind
	GateFailures      *prometheus.CounterVec // gate
	Opportunities     *prometheus.CounterVec // channel
	OpportunityErrors prometheus.Counter
	BriefTransitions  *prometheus.CounterVec // from, to
	Generations       *prometheus.CounterVec // channel
	ExternalLatency   *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		SignalsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_ingested_total",
			Help:      "Signals processed by ingestion, by source and outcome.",
		}, []string{"source", "outcome"}),
		SourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_errors_total",
			Help:      "Failed or unavailable source fetches.",
		}, []string{"source"}),
		IngestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      "Ingestion runs by result.",
		}, []string{"result"}),
		ClustersBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clusters_built_total",
			Help:      "Clusters produced by the clustering engine.",
		}, []string{"kind"}),
		GateFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_failures_total",
			Help:      "Clusters blocked, by the first failing gate.",
		}, []string{"gate"}),
		Opportunities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "opportunities_persisted_total",
			Help:      "Opportunities written, by channel.",
		}, []string{"channel"}),
		OpportunityErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "opportunity_batch_failures_total",
			Help:      "Opportunity insert batches that failed.",
		}),
		BriefTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "brief_transitions_total",
			Help:      "Brief status transitions.",
		}, []string{"from", "to"}),
		Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_generations_total",
			Help:      "Content generations appended, by channel.",
		}, []string{"channel"}),
		ExternalLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "external_call_duration_seconds",
			Help:      "Latency of external calls by provider and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "outcome"}),
	}

	reg.MustRegister(
		m.SignalsIngested,
		m.SourceErrors,
		m.IngestRuns,
		m.ClustersBuilt,
		m.GateFailures,
		m.Opportunities,
		m.OpportunityErrors,
		m.BriefTransitions,
		m.Generations,
		m.ExternalLatency,
	)
	return m
}

// Nop returns collectors on a private registry nobody scrapes.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}

// OrNop returns m, or Nop() when m is nil.
func OrNop(m *Metrics) *Metrics {
	if m == nil {
		return Nop()
	}
	return m
}

// ObserveCall records an external call's latency since start.
func (m *Metrics) ObserveCall(provider string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ExternalLatency.WithLabelValues(provider, outcome).Observe(time.Since(start).Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

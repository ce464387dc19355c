// Package metrics exposes Prometheus instrumentation for the indexing
// and search pipelines.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors used across the pipeline. A nil *Metrics
// is valid and turns every record call into a no-op, which keeps tests
// and library callers free of registry setup.
type Metrics struct {
	FilesIndexed       prometheus.Counter
	ElementsIndexed    prometheus.Counter
	ParseFailures      prometheus.Counter
	IndexDuration      prometheus.Histogram
	EmbeddingRequests  *prometheus.CounterVec
	EmbeddingFailures  prometheus.Counter
	EmbeddingCacheHits *prometheus.CounterVec
	SearchRequests     prometheus.Counter
	SearchDuration     prometheus.Histogram
}

// New registers the collectors with reg and returns them. Pass
// prometheus.DefaultRegisterer for the global registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FilesIndexed: factory.NewCounter(prometheus.CounterOpts{
			Name: "codescope_files_indexed_total",
			Help: "Number of source files indexed.",
		}),
		ElementsIndexed: factory.NewCounter(prometheus.CounterOpts{
			Name: "codescope_elements_indexed_total",
			Help: "Number of code elements extracted and stored.",
		}),
		ParseFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "codescope_parse_failures_total",
			Help: "Number of files that failed to parse.",
		}),
		IndexDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "codescope_index_duration_seconds",
			Help:    "Wall-clock duration of repository indexing runs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		EmbeddingRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codescope_embedding_requests_total",
			Help: "Embedding backend requests by provider.",
		}, []string{"provider"}),
		EmbeddingFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "codescope_embedding_failures_total",
			Help: "Embedding requests that failed after retries.",
		}),
		EmbeddingCacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codescope_embedding_cache_hits_total",
			Help: "Embedding cache hits by tier (memory or store).",
		}, []string{"tier"}),
		SearchRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "codescope_search_requests_total",
			Help: "Number of search queries served.",
		}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "codescope_search_duration_seconds",
			Help:    "Latency of search queries.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// RecordFileIndexed increments the indexed file counter.
func (m *Metrics) RecordFileIndexed() {
	if m == nil {
		return
	}
	m.FilesIndexed.Inc()
}

// RecordElementsIndexed adds n to the indexed element counter.
func (m *Metrics) RecordElementsIndexed(n int) {
	if m == nil {
		return
	}
	m.ElementsIndexed.Add(float64(n))
}

// RecordParseFailure increments the parse failure counter.
func (m *Metrics) RecordParseFailure() {
	if m == nil {
		return
	}
	m.ParseFailures.Inc()
}

// RecordIndexDuration observes an indexing run duration in seconds.
func (m *Metrics) RecordIndexDuration(seconds float64) {
	if m == nil {
		return
	}
	m.IndexDuration.Observe(seconds)
}

// RecordEmbeddingRequest counts a backend request for a provider.
func (m *Metrics) RecordEmbeddingRequest(provider string) {
	if m == nil {
		return
	}
	m.EmbeddingRequests.WithLabelValues(provider).Inc()
}

// RecordEmbeddingFailure counts a backend request that failed for good.
func (m *Metrics) RecordEmbeddingFailure() {
	if m == nil {
		return
	}
	m.EmbeddingFailures.Inc()
}

// RecordEmbeddingCacheHit counts a cache hit in the given tier.
func (m *Metrics) RecordEmbeddingCacheHit(tier string) {
	if m == nil {
		return
	}
	m.EmbeddingCacheHits.WithLabelValues(tier).Inc()
}

// RecordSearch observes one search request and its latency.
func (m *Metrics) RecordSearch(seconds float64) {
	if m == nil {
		return
	}
	m.SearchRequests.Inc()
	m.SearchDuration.Observe(seconds)
}

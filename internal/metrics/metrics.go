// Package metrics defines the Prometheus instrumentation for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EmbeddingRequestsTotal counts calls to the embedding provider by outcome.
	EmbeddingRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assist_embedding_requests_total",
		Help: "Embedding provider requests by provider, model and status.",
	}, []string{"provider", "model", "status"})

	// EmbeddingCacheTotal counts embedding cache lookups by result (hit/miss).
	EmbeddingCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assist_embedding_cache_total",
		Help: "Embedding cache lookups by result.",
	}, []string{"result"})

	// GenerationRequestsTotal counts calls to the generative model by outcome.
	GenerationRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assist_generation_requests_total",
		Help: "Generative model requests by provider, model and status.",
	}, []string{"provider", "model", "status"})

	// StageDuration observes per-request pipeline stage latency in seconds.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "assist_pipeline_stage_duration_seconds",
		Help:    "Duration of pipeline stages (expand, retrieve, rerank, assemble, synthesize).",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	// RequestsTotal counts end-to-end ask requests by outcome.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assist_requests_total",
		Help: "Ask requests by status (ok, degraded, insufficient, error).",
	}, []string{"status"})
)

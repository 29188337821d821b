package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FilterSchemesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheme_matcher_filter_dropped_total",
			Help: "Total number of schemes dropped by a filter step",
		},
		[]string{"filter"},
	)

	IneligibleSchemes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheme_matcher_ineligible_total",
			Help: "Total number of ineligible schemes by first failing criterion",
		},
		[]string{"criterion"},
	)

	EmbeddingCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheme_matcher_embedding_cache_total",
			Help: "Embedding cache lookups by result",
		},
		[]string{"result"},
	)

	SimilarityScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheme_matcher_similarity_score",
			Help:    "Cosine similarity between user and scheme descriptions",
			Buckets: prometheus.LinearBuckets(-1, 0.1, 21),
		},
	)

	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "scheme_matcher_recommend_duration_seconds",
			Help: "Duration of a recommendation run in seconds",
		},
		[]string{"outcome"},
	)

	AadhaarVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheme_matcher_aadhaar_verifications_total",
			Help: "Total number of Aadhaar verifications by outcome",
		},
		[]string{"outcome"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheme_matcher_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "code"},
	)
)

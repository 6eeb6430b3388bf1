package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval and mapping Prometheus metrics.
var (
	RetrievalAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbroute",
			Name:      "retrieval_attempts_total",
			Help:      "Total number of knowledge base retrieval calls",
		},
		[]string{"mode", "outcome"}, // outcome: "hits" / "empty" / "error"
	)

	SearchEscalationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbroute",
			Name:      "search_escalations_total",
			Help:      "Adaptive recall escalations by final outcome",
		},
		[]string{"outcome"}, // "recovered" / "exhausted" / "cancelled"
	)

	MappingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "kbroute",
			Name:      "mapping_duration_seconds",
			Help:      "Query to knowledge base mapping duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	MappingResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "kbroute",
			Name:      "mapping_results",
			Help:      "Number of knowledge bases kept per mapping call",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		},
	)

	KBUnavailableTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kbroute",
			Name:      "kb_unavailable_total",
			Help:      "Mapped knowledge bases skipped because they could not be resolved",
		},
	)

	ScorerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbroute",
			Name:      "scorer_requests_total",
			Help:      "Total number of relevance scorer requests",
		},
		[]string{"model", "status"},
	)

	ScorerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kbroute",
			Name:      "scorer_request_duration_seconds",
			Help:      "Relevance scorer request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"model"},
	)

	ScorerCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbroute",
			Name:      "scorer_cache_total",
			Help:      "Relevance scorer cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var retrievalMetricsRegistered bool

// RegisterRetrievalMetrics registers the retrieval and mapping metrics. Must be called once from main.
func RegisterRetrievalMetrics() {
	if retrievalMetricsRegistered {
		return
	}
	prometheus.MustRegister(RetrievalAttemptsTotal)
	prometheus.MustRegister(SearchEscalationsTotal)
	prometheus.MustRegister(MappingDuration)
	prometheus.MustRegister(MappingResults)
	prometheus.MustRegister(KBUnavailableTotal)
	prometheus.MustRegister(ScorerRequestsTotal)
	prometheus.MustRegister(ScorerRequestDuration)
	prometheus.MustRegister(ScorerCacheTotal)
	retrievalMetricsRegistered = true
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "select",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "select",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20},
	}, []string{"method", "path"})

	RankRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "select",
		Name:      "rank_requests_total",
		Help:      "Total ranking invocations by mode and result status.",
	}, []string{"mode", "status"})

	RankDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "select",
		Name:      "rank_duration_seconds",
		Help:      "End-to-end ranking pipeline duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 5},
	}, []string{"mode"})

	RankCandidates = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "select",
		Name:      "rank_candidates",
		Help:      "Number of candidates per ranking invocation.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})

	CacheTierHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "select",
		Name:      "health_cache_tier_hits_total",
		Help:      "Health cache hits by tier (memory, disk, persistent).",
	}, []string{"tier"})

	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "select",
		Name:      "health_cache_misses_total",
		Help:      "Health cache lookups that missed every tier.",
	})

	CacheTierErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "select",
		Name:      "health_cache_tier_errors_total",
		Help:      "Health cache tier failures degraded to misses, by tier.",
	}, []string{"tier"})

	FilterRelaxationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "select",
		Name:      "filter_relaxations_total",
		Help:      "Conflict-resolution relaxation steps applied, by step.",
	}, []string{"step"})

	BatchChunksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "select",
		Name:      "batch_chunks_total",
		Help:      "Batch optimizer chunks processed, by kind (priority, background).",
	}, []string{"kind"})

	BatchCancellationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "select",
		Name:      "batch_cancellations_total",
		Help:      "Batch runs cut short by context cancellation.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		RankRequestsTotal,
		RankDuration,
		RankCandidates,
		CacheTierHitsTotal,
		CacheMissesTotal,
		CacheTierErrorsTotal,
		FilterRelaxationsTotal,
		BatchChunksTotal,
		BatchCancellationsTotal,
	)
}

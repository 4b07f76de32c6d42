package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks read-path hits.
	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gate_cache_hits_total",
			Help: "Total number of response cache hits",
		},
	)

	// cacheMisses tracks read-path misses, including corrupt entries.
	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gate_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	// cacheInvalidations tracks write-path deletions.
	cacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gate_cache_invalidations_total",
			Help: "Total number of response cache invalidations",
		},
	)

	// cacheErrors tracks cache operation errors.
	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "read", "decode", "write", "invalidate"
	)
)

package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts replies served from Redis.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reservations_cache_hits_total",
			Help: "Total number of passthrough cache hits",
		},
	)

	// CacheMisses counts lookups that had to go upstream.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reservations_cache_misses_total",
			Help: "Total number of passthrough cache misses",
		},
	)

	// CacheErrors counts failed cache operations.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservations_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)

package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup results.
const (
	resultHit     = "hit"
	resultMiss    = "miss"
	resultExpired = "expired"
	resultInvalid = "invalid"
)

var (
	// CacheLookups counts chart lookups by chart kind and result
	// (hit, miss, expired, invalid).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starwatch_cache_lookups_total",
			Help: "Chart cache lookups by kind and result",
		},
		[]string{"kind", "result"},
	)

	// CacheWrites counts stored chart URLs by kind.
	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starwatch_cache_writes_total",
			Help: "Chart URLs written to the cache",
		},
		[]string{"kind"},
	)

	// CacheErrors counts Redis failures by operation (get, set, delete).
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starwatch_cache_errors_total",
			Help: "Chart cache Redis errors",
		},
		[]string{"operation"},
	)
)

// Package cache provides a Redis-backed cache of rendered chart image URLs.
//
// Chart images produced by the astronomy API are deterministic for a given
// chart kind, observation date, observer position and view parameters. The
// cache manager stores the resulting image URL under a key derived from those
// inputs, so that a resubmitted group does not call the API again for items
// that were already resolved, and a re-run of a job on the same day is cheap.
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create cache manager
//	manager := cache.NewManager(redisClient)
//
//	// Create cache key
//	key := cache.ChartKey{
//		Kind:      cache.KindConstellation,
//		Date:      "2024-03-01",
//		Latitude:  51.5072,
//		Longitude: -0.1276,
//		Params:    map[string]string{"constellation": "ori"},
//	}
//
//	// Get from cache
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - render the chart
//	}
//
//	// Store with a TTL
//	err = manager.Set(ctx, key, cache.NewChartEntry(imageURL, 24*time.Hour))
//
// # Metrics
//
//   - starwatch_cache_lookups_total{kind, result} - hit, miss, expired or invalid
//   - starwatch_cache_writes_total{kind} - Stored chart URLs
//   - starwatch_cache_errors_total{operation} - Redis failures
package cache

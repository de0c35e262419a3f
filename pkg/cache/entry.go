package cache

import (
	"time"
)

// ChartEntry represents a cached chart image URL.
type ChartEntry struct {
	// ImageURL is the rendered chart location returned by the API
	ImageURL string `json:"image_url"`

	// Expires is when the cache entry becomes stale
	Expires time.Time `json:"expires"`

	// CachedAt is when we cached this entry
	CachedAt time.Time `json:"cached_at"`
}

// NewChartEntry creates an entry for imageURL that expires after ttl.
func NewChartEntry(imageURL string, ttl time.Duration) *ChartEntry {
	now := time.Now()
	return &ChartEntry{
		ImageURL: imageURL,
		Expires:  now.Add(ttl),
		CachedAt: now,
	}
}

// IsExpired returns true if the cache entry has expired.
func (e *ChartEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *ChartEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

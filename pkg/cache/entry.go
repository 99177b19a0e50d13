// Package cache stores relayed upstream replies in Redis so repeated
// lookups of slow-changing data (sets, reservable listings, reservable
// details) skip the upstream round trip.
package cache

import (
	"encoding/json"
	"time"
)

// DefaultTTL is used when a Manager is created without a TTL.
const DefaultTTL = 5 * time.Minute

// CacheEntry is a cached upstream reply.
type CacheEntry struct {
	// Data is the upstream JSON body.
	Data json.RawMessage `json:"data"`

	// StatusCode is the upstream status the body was served with.
	StatusCode int `json:"status_code"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// CachedAt is when the entry was written.
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry builds an entry for body that expires after ttl.
func NewEntry(statusCode int, body json.RawMessage, ttl time.Duration) *CacheEntry {
	now := time.Now()
	return &CacheEntry{
		Data:       body,
		StatusCode: statusCode,
		Expires:    now.Add(ttl),
		CachedAt:   now,
	}
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

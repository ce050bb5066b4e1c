package cache

import (
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache: miss")

// CacheService represents a generic TTL cache service. The detail cache's fast
// tier and the fetch rate limiter both speak this interface, so the backend can
// be the in-process map (default) or a shared memcached when several ingest
// processes run against the same upstream.
type CacheService interface {
	// Get retrieves a value from the cache
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache
	Delete(key string) error
}

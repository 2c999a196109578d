// Package cache provides pluggable byte-value caching backends.
//
// The engine caches fetched descriptor payloads so repeat resolutions do
// not re-contact repository hosts. Three backends are provided:
//   - FileCache: file-based storage for CLI usage
//   - RedisCache: shared storage for multi-instance server deployments
//   - NullCache: no-op backend for tests or --refresh runs
//
// Keys are arbitrary strings; backends hash them where the storage medium
// requires safe names. Values carry an optional TTL.
package cache

import (
	"context"
	"time"
)

// Cache is the interface implemented by all caching backends.
type Cache interface {
	// Get retrieves a value. The second return is false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL. A TTL of 0 means the entry
	// never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Key builds a namespaced cache key from its components, hashing the
// parts so URLs and path overrides cannot collide with the separator.
func Key(namespace string, parts ...any) string {
	return hashKey(namespace, parts...)
}

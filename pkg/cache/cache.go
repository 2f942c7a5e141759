// Package cache provides the byte-oriented cache used by the block pipeline.
//
// Every pipeline stage (transaction fetch, packing, markup emission) stores
// its result under a key produced by a [Keyer]. Backends:
//
//   - [FileCache]: one JSON file per entry, for the CLI
//   - [MemoryCache]: in-process, expiring map (patrickmn/go-cache)
//   - [RedisCache]: shared cache for multiple server instances
//   - [BadgerCache]: embedded on-disk key-value store
//   - [NullCache]: caching disabled
//
// [Open] selects a backend from a [Config].
package cache

import (
	"context"
	"time"
)

// TTLs for each pipeline stage. Confirmed blocks never change, so fetched
// transaction sizes and packings live long; markup embeds a minute-scoped
// seed and expires quickly.
const (
	TTLTx     = 30 * 24 * time.Hour
	TTLLayout = 30 * 24 * time.Hour
	TTLMarkup = 10 * time.Minute
)

// Cache stores opaque byte values with an optional time-to-live.
// A ttl of zero means the entry never expires.
type Cache interface {
	// Get returns the value and true on a hit, or nil and false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

package cache

import (
	"context"
	"fmt"
)

// Backend names accepted by [Open].
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBadger = "badger"
	BackendNone   = "none"
)

// Config selects and configures a cache backend.
type Config struct {
	Backend string      // file (default), memory, redis, badger, none
	Dir     string      // directory for file and badger backends
	Redis   RedisConfig // redis backend
}

// Open creates the configured backend wrapped with [Instrument].
func Open(ctx context.Context, cfg Config) (Cache, error) {
	var (
		c   Cache
		err error
	)
	switch cfg.Backend {
	case "", BackendFile:
		if cfg.Dir == "" {
			return nil, fmt.Errorf("file cache: directory is required")
		}
		c, err = NewFileCache(cfg.Dir)
	case BackendMemory:
		c = NewMemoryCache()
	case BackendRedis:
		c, err = NewRedisCache(ctx, cfg.Redis)
	case BackendBadger:
		c, err = NewBadgerCache(cfg.Dir)
	case BackendNone:
		c = NewNullCache()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(c), nil
}

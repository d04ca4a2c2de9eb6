package cache

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ppiankov/claimgate/internal/model"
)

// ResultCache stores parsed results keyed by mode and normalized claim
type ResultCache struct {
	store  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewResultCache wraps store. A nil store yields a cache that never hits.
func NewResultCache(store Cache, ttl time.Duration, logger *slog.Logger) *ResultCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultCache{store: store, ttl: ttl, logger: logger}
}

// Get returns a copy of the cached result marked Cached
func (c *ResultCache) Get(mode model.Mode, claim string) (*model.Result, bool) {
	if c == nil || c.store == nil {
		return nil, false
	}

	data, ok := c.store.Get(CacheKey(mode, claim))
	if !ok {
		return nil, false
	}

	var result model.Result
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn("discarding unreadable cache entry", "mode", mode, "error", err)
		_ = c.store.Delete(CacheKey(mode, claim))
		return nil, false
	}
	if result.Mode != mode {
		return nil, false
	}

	result.Cached = true
	return &result, true
}

// Set stores result. Degraded results are never stored.
func (c *ResultCache) Set(mode model.Mode, claim string, result *model.Result) {
	if c == nil || c.store == nil || result == nil || result.Degraded {
		return
	}

	stored := *result
	stored.Cached = false
	data, err := json.Marshal(&stored)
	if err != nil {
		c.logger.Warn("failed to encode result for cache", "error", err)
		return
	}
	if err := c.store.Set(CacheKey(mode, claim), data, c.ttl); err != nil {
		c.logger.Warn("failed to store result in cache", "error", err)
	}
}

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/ppiankov/claimgate/internal/model"
)

// Cache defines the interface for byte caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// CacheKey generates a cache key from an analysis mode and a normalized claim
func CacheKey(mode model.Mode, claim string) string {
	hash := sha256.Sum256([]byte(claim))
	return "claimgate:v1:" + string(mode) + ":" + hex.EncodeToString(hash[:])
}

// New builds the cache described by cfg: memory only when Dir is empty,
// memory in front of disk otherwise. Returns nil when caching is disabled.
func New(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Dir == "" {
		return NewMemoryCache(cfg.TTL, cfg.CleanupInterval)
	}
	return NewLayeredCache(cfg.TTL, cfg.CleanupInterval, cfg.Dir)
}

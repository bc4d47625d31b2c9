package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/ppiankov/hazardlog/internal/model"
)

// Cache stores collector responses between runs.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives the cache key for a source URL.
func Key(sourceName, rawURL string) string {
	hash := sha256.Sum256([]byte(sourceName + "\x00" + rawURL))
	return "hazardlog:v1:" + hex.EncodeToString(hash[:])
}

// NewFromConfig returns the response cache described by cfg, or nil when
// caching is disabled.
func NewFromConfig(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Dir == "" {
		return NewMemoryCache(cfg.MemoryTTL, 10*time.Minute)
	}
	return NewLayeredCache(cfg.MemoryTTL, cfg.Dir, cfg.DiskTTL)
}

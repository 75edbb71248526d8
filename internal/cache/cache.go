package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores serialized search results keyed by source and query
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// KeyFor builds a cache key for a (source, query) pair. Query text is
// hashed so arbitrary input maps to a safe filename.
func KeyFor(source, query string) string {
	hash := sha256.Sum256([]byte(source + "\x00" + query))
	return "noema:v1:" + source + ":" + hex.EncodeToString(hash[:16])
}

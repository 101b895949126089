// Package cache provides the byte caches that sit in front of the gazetteer.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// keyPrefix namespaces every entry; bump the version when cached payloads change shape
const keyPrefix = "toporag:v1:"

// Key builds a cache key from a kind ("candidates", "nearby", ...) and the lookup arguments
func Key(kind string, parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return keyPrefix + kind + ":" + hex.EncodeToString(hash[:])
}

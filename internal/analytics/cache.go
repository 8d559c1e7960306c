// Package analytics computes aggregated views over extracted attributes and
// scheme interests, with a TTL cache keyed by filter hash.
package analytics

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is the caching contract the aggregator depends on. Implementations
// must be safe for concurrent use.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	InvalidatePrefix(prefix string)
}

// TTLCache wraps an expiring in-process cache.
type TTLCache struct {
	inner *gocache.Cache
}

func NewTTLCache(ttl time.Duration) *TTLCache {
	return &TTLCache{inner: gocache.New(ttl, 2*ttl)}
}

func (c *TTLCache) Get(key string) (any, bool) {
	return c.inner.Get(key)
}

func (c *TTLCache) Set(key string, value any) {
	c.inner.SetDefault(key, value)
}

// InvalidatePrefix drops every entry whose key starts with prefix.
func (c *TTLCache) InvalidatePrefix(prefix string) {
	for key := range c.inner.Items() {
		if strings.HasPrefix(key, prefix) {
			c.inner.Delete(key)
		}
	}
}

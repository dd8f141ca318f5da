package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	// DefaultExpiry bounds how stale a cached value may get
	DefaultExpiry = 30 * time.Second

	cleanupInterval = 5 * time.Minute
)

// Cache is a small read-through cache used at the API boundary. The core
// services never cache; staleness is only ever visible at the edge.
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// InMemoryCache implements Cache on an expiring in-process store
type InMemoryCache struct {
	store *gocache.Cache
}

// NewInMemoryCache creates a new in-memory cache
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		store: gocache.New(DefaultExpiry, cleanupInterval),
	}
}

func (c *InMemoryCache) Get(ctx context.Context, key string) (interface{}, bool) {
	return c.store.Get(key)
}

func (c *InMemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	c.store.Set(key, value, ttl)
}

func (c *InMemoryCache) Delete(ctx context.Context, key string) {
	c.store.Delete(key)
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("set and get round trip", func(t *testing.T) {
		c := NewInMemoryCache()
		c.Set(ctx, "stats", map[string]int{"active": 3}, time.Minute)

		value, found := c.Get(ctx, "stats")
		assert.True(t, found)
		assert.Equal(t, map[string]int{"active": 3}, value)
	})

	t.Run("miss on unknown key", func(t *testing.T) {
		c := NewInMemoryCache()

		value, found := c.Get(ctx, "missing")
		assert.False(t, found)
		assert.Nil(t, value)
	})

	t.Run("delete removes the entry", func(t *testing.T) {
		c := NewInMemoryCache()
		c.Set(ctx, "stats", "stale", time.Minute)
		c.Delete(ctx, "stats")

		_, found := c.Get(ctx, "stats")
		assert.False(t, found)
	})

	t.Run("delete on missing key is a no-op", func(t *testing.T) {
		c := NewInMemoryCache()
		c.Delete(ctx, "missing")
	})

	t.Run("entry expires after its ttl", func(t *testing.T) {
		c := NewInMemoryCache()
		c.Set(ctx, "stats", 42, 10*time.Millisecond)

		_, found := c.Get(ctx, "stats")
		assert.True(t, found)

		time.Sleep(30 * time.Millisecond)

		_, found = c.Get(ctx, "stats")
		assert.False(t, found)
	})

	t.Run("overwriting a key replaces the value", func(t *testing.T) {
		c := NewInMemoryCache()
		c.Set(ctx, "stats", 1, time.Minute)
		c.Set(ctx, "stats", 2, time.Minute)

		value, found := c.Get(ctx, "stats")
		assert.True(t, found)
		assert.Equal(t, 2, value)
	})
}

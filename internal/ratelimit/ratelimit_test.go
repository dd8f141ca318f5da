package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codeldorado/rebill/internal/config"
)

func TestLimiterAllowsWithinBurst(t *testing.T) {
	limiter := NewLimiter(config.RateLimitConfig{RequestsPerMinute: 60, Burst: 5})

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.IsAllowed("10.0.0.1"), "request %d should pass", i)
	}
	assert.False(t, limiter.IsAllowed("10.0.0.1"))
}

func TestLimiterIsolatesIdentities(t *testing.T) {
	limiter := NewLimiter(config.RateLimitConfig{RequestsPerMinute: 60, Burst: 1})

	assert.True(t, limiter.IsAllowed("10.0.0.1"))
	assert.False(t, limiter.IsAllowed("10.0.0.1"))
	assert.True(t, limiter.IsAllowed("10.0.0.2"))
}

func TestCurrentUsage(t *testing.T) {
	limiter := NewLimiter(config.RateLimitConfig{RequestsPerMinute: 120, Burst: 10})

	usage := limiter.CurrentUsage("10.0.0.1")
	assert.Equal(t, 120, usage.Limit)
	assert.Equal(t, 10, usage.Remaining)
	assert.Equal(t, 0, usage.Count)

	limiter.IsAllowed("10.0.0.1")
	usage = limiter.CurrentUsage("10.0.0.1")
	assert.Less(t, usage.Remaining, 10)
	assert.Equal(t, 1, usage.Count)
}

func TestCurrentUsageCountsOnlyConsumedRequests(t *testing.T) {
	limiter := NewLimiter(config.RateLimitConfig{RequestsPerMinute: 60, Burst: 2})

	assert.True(t, limiter.IsAllowed("10.0.0.1"))
	assert.True(t, limiter.IsAllowed("10.0.0.1"))
	assert.False(t, limiter.IsAllowed("10.0.0.1"))

	// The denied request does not consume budget
	assert.Equal(t, 2, limiter.CurrentUsage("10.0.0.1").Count)
	assert.Equal(t, 0, limiter.CurrentUsage("10.0.0.2").Count)
}

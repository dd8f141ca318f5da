package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/codeldorado/rebill/internal/config"
)

// Usage is a point in time view of an identity's rate budget. Count is the
// number of requests the identity has consumed.
type Usage struct {
	Count     int       `json:"count"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Limiter decides whether a request identity may proceed
type Limiter interface {
	IsAllowed(identity string) bool
	CurrentUsage(identity string) Usage
}

// tokenBucketLimiter keeps one token bucket per identity. Buckets refill at
// the configured per-minute rate and are created lazily.
type tokenBucketLimiter struct {
	mu      sync.Mutex
	buckets map[string]*identityBucket

	perMinute int
	burst     int
}

type identityBucket struct {
	limiter *rate.Limiter
	count   int
}

// NewLimiter creates a token bucket limiter from configuration
func NewLimiter(cfg config.RateLimitConfig) Limiter {
	return &tokenBucketLimiter{
		buckets:   make(map[string]*identityBucket),
		perMinute: cfg.RequestsPerMinute,
		burst:     cfg.Burst,
	}
}

// bucket returns the identity's bucket; the caller must hold the mutex
func (l *tokenBucketLimiter) bucket(identity string) *identityBucket {
	b, ok := l.buckets[identity]
	if !ok {
		b = &identityBucket{
			limiter: rate.NewLimiter(rate.Limit(float64(l.perMinute)/60.0), l.burst),
		}
		l.buckets[identity] = b
	}
	return b
}

func (l *tokenBucketLimiter) IsAllowed(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.bucket(identity)
	if !b.limiter.Allow() {
		return false
	}
	b.count++
	return true
}

func (l *tokenBucketLimiter) CurrentUsage(identity string) Usage {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.bucket(identity)
	remaining := int(b.limiter.Tokens())
	if remaining < 0 {
		remaining = 0
	}
	return Usage{
		Count:     b.count,
		Limit:     l.perMinute,
		Remaining: remaining,
		ResetAt:   time.Now().Add(time.Minute),
	}
}

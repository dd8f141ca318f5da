package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	ierr "github.com/codeldorado/rebill/internal/errors"
	"github.com/codeldorado/rebill/internal/ratelimit"
)

// RateLimitMiddleware throttles requests by client IP and exposes the
// remaining budget in response headers
func RateLimitMiddleware(limiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := c.ClientIP()

		usage := limiter.CurrentUsage(identity)
		c.Writer.Header().Set("X-RateLimit-Limit", strconv.Itoa(usage.Limit))
		c.Writer.Header().Set("X-RateLimit-Remaining", strconv.Itoa(usage.Remaining))

		if !limiter.IsAllowed(identity) {
			err := ierr.NewError("rate limit exceeded").
				WithHint("Too many requests; slow down and retry").
				Mark(ierr.ErrValidation)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ierr.NewErrorResponse(err))
			return
		}

		c.Next()
	}
}

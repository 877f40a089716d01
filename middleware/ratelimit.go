package middleware

import (
	"math"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nebulium/authcore/net/resp"
	"github.com/nebulium/authcore/security/ratelimit"
)

// RateLimit rejects requests past maxAttempts per window, keyed by client
// IP and route. Rejections carry a Retry-After hint.
func RateLimit(limiter *ratelimit.Limiter, name string, maxAttempts int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := name + ":" + c.ClientIP()
		allowed, retryAfter := limiter.Allow(key, maxAttempts, window)
		if !allowed {
			resp.FailWithRetry(c.Writer, int(math.Ceil(retryAfter.Seconds())))
			c.Abort()
			return
		}
		c.Next()
	}
}

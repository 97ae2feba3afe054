package middleware

import (
	"fmt"
	"time"

	"exrun/internal/common/ratelimit"
	"exrun/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware enforces a per-client-IP fixed-window limit on one
// route. A nil limiter disables limiting entirely.
func RateLimitMiddleware(limiter *ratelimit.Service, routeKey string, max int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		key := fmt.Sprintf("runner:rate:ip:%s:%s", c.ClientIP(), routeKey)
		if err := limiter.Allow(c.Request.Context(), key, max, window); err != nil {
			response.AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

package ratelimit

import (
	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-chat/pkg/response"
)

// Middleware rejects requests over the limit with 429. Authenticated
// requests are keyed by username, anonymous ones by client IP.
func (l *Limiter) Middleware(onLimited func()) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := middleware.GetUsername(c)
		if key == "" {
			key = c.ClientIP()
		}
		if !l.Allow(key) {
			if onLimited != nil {
				onLimited()
			}
			logger := log.Ctx(c.Request.Context())
			logger.Debug().Str("key", key).Msg("rate limited")
			response.TooManyRequests(c, "rate_limited")
			c.Abort()
			return
		}
		c.Next()
	}
}

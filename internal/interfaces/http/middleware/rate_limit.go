package middleware

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/tenantjwt/internal/infrastructure/ratelimit"
	"github.com/turtacn/tenantjwt/pkg/errors"
	"github.com/turtacn/tenantjwt/pkg/logger"
)

// RateLimit 按客户端 IP 限流。限流器出错时放行请求。
func RateLimit(limiter ratelimit.Limiter, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		res, err := limiter.Allow(ctx, "ip:"+c.ClientIP())
		if err != nil {
			log.Warn(ctx, "Rate limit check failed", logger.Err(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			log.Warn(ctx, "Rate limit exceeded", logger.String("client_ip", c.ClientIP()))
			abort(c, errors.ErrRateLimited(res.RetryAfter))
			return
		}
		c.Next()
	}
}

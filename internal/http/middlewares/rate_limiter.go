package middlewares

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/dkuznetsov/authsvc/internal/redisclient"
	"github.com/gin-gonic/gin"
)

// RateLimiter enforces a fixed-window per-client limit backed by Redis,
// so the counter survives restarts and is shared across replicas.
// With no Redis client configured it is a no-op.
type RateLimiter struct {
	rdb    *redisclient.Client
	limit  int
	window time.Duration
	log    *slog.Logger
}

func NewRateLimiter(rdb *redisclient.Client, limit int, window time.Duration, log *slog.Logger) *RateLimiter {
	return &RateLimiter{
		rdb:    rdb,
		limit:  limit,
		window: window,
		log:    log,
	}
}

func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rdb == nil || rl.limit <= 0 {
			c.Next()
			return
		}

		route := c.FullPath()

		if route == "" {
			route = c.Request.URL.Path
		}

		key := "ratelimit:" + route + ":" + clientIP(c)

		n, ttl, err := rl.rdb.Incr(c.Request.Context(), key, rl.window)

		if err != nil {
			// fail open: a limiter outage must not take login down with it
			rl.log.WarnContext(c.Request.Context(), "rate limiter unavailable", "err", err)
			c.Next()
			return
		}

		if n > int64(rl.limit) {
			retryAfter := int(ttl.Seconds())

			if retryAfter < 0 {
				retryAfter = 0
			}

			c.Header("Retry-After", strconv.Itoa(retryAfter))

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "rate_limited",
					"message": "Too many requests. Please try again shortly.",
				},
			})

			return
		}

		c.Next()
	}
}

func clientIP(c *gin.Context) string {
	ip := c.ClientIP()

	host, _, err := net.SplitHostPort(ip)

	if err == nil && host != "" {
		return host
	}

	return ip
}

package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/notebins/notebins/internal/apperror"
	"github.com/notebins/notebins/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

// RedisRateLimitMiddleware provides a fixed-window Redis-backed limiter keyed by client IP,
// allowing limit requests per window across every instance sharing the Redis.
// Algorithm: INCR a per-window key and compare against limit.
func RedisRateLimitMiddleware(client *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	windowSeconds := int(window.Seconds())
	if windowSeconds <= 0 {
		windowSeconds = 1
	}
	if client == nil {
		// fallback to in-memory if no client
		return RateLimitMiddleware(float64(limit)/float64(windowSeconds), limit)
	}
	return func(c *gin.Context) {
		bucket := time.Now().Unix() / int64(windowSeconds)
		redisKey := fmt.Sprintf("rl:%s:%d", clientKey(c), bucket)

		ctx := c.Request.Context()
		cnt, err := client.Incr(ctx, redisKey).Result()
		if err != nil {
			_ = c.Error(apperror.Wrap(err, "Rate limit check failed"))
			c.Abort()
			return
		}
		if cnt == 1 {
			// set expiration for the bucket
			_ = client.Expire(ctx, redisKey, time.Duration(windowSeconds+1)*time.Second).Err()
		}
		remaining := limit - int(cnt)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("RateLimit-Limit", strconv.Itoa(limit))
		c.Header("RateLimit-Remaining", strconv.Itoa(remaining))
		if int(cnt) > limit {
			c.Header("Retry-After", strconv.Itoa(windowSeconds))
			metrics.RateLimitRejected.WithLabelValues("redis").Inc()
			rejectRateLimited(c)
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("redis").Inc()
		c.Next()
	}
}

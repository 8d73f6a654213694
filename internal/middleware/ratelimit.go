package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/scoreapp/score/pkg/response"
)

type RateLimiter struct {
	redis *redis.Client
	log   *zap.Logger
}

// NewRateLimiter returns a fixed-window limiter. A nil client disables
// limiting, as in single-node memory mode.
func NewRateLimiter(redisClient *redis.Client, log *zap.Logger) *RateLimiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimiter{redis: redisClient, log: log}
}

// Limit creates a rate limiting middleware keyed by user, or by client IP for
// unauthenticated requests.
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rl.redis == nil || maxRequests <= 0 {
			return c.Next()
		}

		subject := GetUserID(c)
		if subject == "" {
			subject = "ip:" + c.IP()
		}

		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, subject)
		ctx := context.Background()

		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			// fail open
			rl.log.Warn("rate limiter unavailable", zap.Error(err))
			return c.Next()
		}

		if count == 1 {
			rl.redis.Expire(ctx, key, window)
		}

		if count > int64(maxRequests) {
			ttl, _ := rl.redis.TTL(ctx, key).Result()
			c.Set("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))
			return response.RateLimited(c)
		}

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", maxRequests))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", maxRequests-int(count)))

		return c.Next()
	}
}

// UploadLimit returns a rate limiter for the upload endpoint
func (rl *RateLimiter) UploadLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("upload", maxPerHour, time.Hour)
}

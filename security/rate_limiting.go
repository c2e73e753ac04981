package security

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a Redis fixed-window limiter keyed by authenticated user,
// falling back to client IP. Shared across instances since the counters live
// in Redis.
type RateLimiter struct {
	redis  *redis.Client
	max    int64
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		max:    int64(max),
		window: window,
	}
}

// Limit is route middleware for the order placement endpoint.
func (r *RateLimiter) Limit(e *core.RequestEvent) error {
	if r.redis == nil {
		return e.Next()
	}

	identity := e.RealIP()
	if e.Auth != nil {
		identity = fmt.Sprintf("user:%s", e.Auth.Id)
	}
	key := fmt.Sprintf("ratelimit:orders:%s", identity)

	ctx := e.Request.Context()
	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		// Redis being down should not block purchases.
		return e.Next()
	}
	if count == 1 {
		r.redis.Expire(ctx, key, r.window)
	}

	if count > r.max {
		return apis.NewApiError(http.StatusTooManyRequests,
			"Rate limit exceeded. Please try again later.", nil)
	}

	return e.Next()
}

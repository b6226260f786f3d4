package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/casehub/accesscore/pkg/httputil"
)

// RateLimitConfig configures a fixed request window.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// DefaultRateLimitConfig allows 300 requests per minute per user.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 300,
		WindowDuration:    time.Minute,
	}
}

// RateLimiter implements per-user rate limiting over Redis so limits
// hold across instances. Redis errors fail open.
type RateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
	log    *logrus.Logger
}

// NewRateLimiter creates a Redis-backed rate limiter.
func NewRateLimiter(redisClient *redis.Client, config *RateLimitConfig, log *logrus.Logger) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if log == nil {
		log = logrus.New()
	}
	return &RateLimiter{
		redis:  redisClient,
		config: config,
		prefix: "ratelimit:user",
		log:    log,
	}
}

// Allow increments the caller's window counter and reports whether the
// request fits under the limit.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.config.WindowDuration)

	if _, err := pipe.Exec(ctx); err != nil {
		// Fail open so a Redis outage does not take the API down
		return true, fmt.Errorf("redis error: %w", err)
	}

	return incr.Val() <= int64(rl.config.RequestsPerWindow), nil
}

// Remaining returns the requests left in the caller's current window.
func (rl *RateLimiter) Remaining(ctx context.Context, key string) (int, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	count, err := rl.redis.Get(ctx, redisKey).Int()
	if err == redis.Nil {
		return rl.config.RequestsPerWindow, nil
	} else if err != nil {
		return 0, err
	}

	remaining := rl.config.RequestsPerWindow - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset clears the rate limit for a key.
func (rl *RateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, fmt.Sprintf("%s:%s", rl.prefix, key)).Err()
}

// Handler applies the limiter per authenticated user. It must run after
// SubjectMiddleware.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub := GetSubject(r)
		if sub == nil {
			next.ServeHTTP(w, r)
			return
		}

		allowed, err := rl.Allow(r.Context(), sub.ID)
		if err != nil {
			rl.log.WithError(err).Warn("rate limiter unavailable, failing open")
		}
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.config.WindowDuration.Seconds())))
			httputil.WriteTooManyRequests(w, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

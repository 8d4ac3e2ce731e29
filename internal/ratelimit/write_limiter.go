package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fanstack/fanstack/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const keyWriteEndpoint = "ratelimit:%s:%s"

// WriteLimiter throttles payment-creating endpoints per user. Disabled
// limiters allow everything, and a redis outage degrades open.
type WriteLimiter struct {
	enabled bool

	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewWriteLimiter(cfg config.Config) (*WriteLimiter, error) {
	if !cfg.RateLimitEnabled {
		return &WriteLimiter{}, nil
	}

	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if cfg.RateLimitRate <= 0 || cfg.RateLimitBurst <= 0 {
		return nil, errors.New("rate limit rate and burst must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})

	return &WriteLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    cfg.RateLimitRate,
		burst:   cfg.RateLimitBurst,
	}, nil
}

func (l *WriteLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *WriteLimiter) Allow(ctx context.Context, endpoint, userID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyWriteEndpoint, strings.TrimSpace(endpoint), strings.TrimSpace(userID))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}

// RetryAfterSeconds rounds up for the Retry-After header.
func RetryAfterSeconds(d time.Duration) int {
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
	MaxResetRequests      int
	ResetRequestWindow    time.Duration
}

// Limiter enforces per-email and per-IP budgets using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckLogin fails with ErrRateLimited when the email, or the IP when IP
// throttling is on, has used up its failed-attempt budget.
func (l *Limiter) CheckLogin(ctx context.Context, email, ip string) error {
	if err := l.checkCounter(ctx, loginKey(email), l.config.MaxLoginAttempts); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, loginIPKey(ip), l.config.MaxLoginAttempts); err != nil {
			return err
		}
	}
	return nil
}

// RecordLoginFailure counts one failed credential attempt.
func (l *Limiter) RecordLoginFailure(ctx context.Context, email, ip string) error {
	if _, err := l.incrementWithTTL(ctx, loginKey(email), l.config.LoginCooldownDuration); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if _, err := l.incrementWithTTL(ctx, loginIPKey(ip), l.config.LoginCooldownDuration); err != nil {
			return err
		}
	}
	return nil
}

// ResetLogin clears the per-email counter after a successful password step.
// The IP counter is left alone so one good account cannot launder an IP.
func (l *Limiter) ResetLogin(ctx context.Context, email string) error {
	if err := l.redis.Del(ctx, loginKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// LoginAttempts returns the current failure count for email.
func (l *Limiter) LoginAttempts(ctx context.Context, email string) (int, error) {
	count, err := l.redis.Get(ctx, loginKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// AllowResetRequest counts a reset request for email and reports
// ErrRateLimited once the window budget is exceeded. A zero budget disables it.
func (l *Limiter) AllowResetRequest(ctx context.Context, email string) error {
	if l.config.MaxResetRequests <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, resetKey(email), l.config.ResetRequestWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxResetRequests) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(maxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: TTL only on the first hit.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}

func loginKey(email string) string   { return "aa:rl:l:" + email }
func loginIPKey(ip string) string    { return "aa:rl:li:" + ip }
func resetKey(email string) string   { return "aa:rl:r:" + email }

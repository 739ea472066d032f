package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, cfg Config) (*miniredis.Miniredis, *Limiter) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, New(rdb, cfg)
}

func TestLoginLockoutAfterBudget(t *testing.T) {
	mr, l := newLimiter(t, Config{MaxLoginAttempts: 3, LoginCooldownDuration: 15 * time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.CheckLogin(ctx, "a@example.com", ""))
		require.NoError(t, l.RecordLoginFailure(ctx, "a@example.com", ""))
	}
	require.ErrorIs(t, l.CheckLogin(ctx, "a@example.com", ""), ErrRateLimited)
	require.NoError(t, l.CheckLogin(ctx, "b@example.com", ""))

	n, err := l.LoginAttempts(ctx, "a@example.com")
	require.NoError(t, err)
	require.Equal(t, 3, n)

	mr.FastForward(16 * time.Minute)
	require.NoError(t, l.CheckLogin(ctx, "a@example.com", ""))
}

func TestLoginResetClearsEmailCounter(t *testing.T) {
	_, l := newLimiter(t, Config{MaxLoginAttempts: 2, LoginCooldownDuration: time.Minute, EnableIPThrottle: true})
	ctx := context.Background()

	require.NoError(t, l.RecordLoginFailure(ctx, "a@example.com", "1.2.3.4"))
	require.NoError(t, l.RecordLoginFailure(ctx, "a@example.com", "1.2.3.4"))
	require.ErrorIs(t, l.CheckLogin(ctx, "a@example.com", "9.9.9.9"), ErrRateLimited)

	require.NoError(t, l.ResetLogin(ctx, "a@example.com"))
	require.NoError(t, l.CheckLogin(ctx, "a@example.com", "9.9.9.9"))
	// IP budget is independent of the email counter.
	require.ErrorIs(t, l.CheckLogin(ctx, "other@example.com", "1.2.3.4"), ErrRateLimited)
}

func TestResetRequestBudget(t *testing.T) {
	_, l := newLimiter(t, Config{MaxResetRequests: 2, ResetRequestWindow: time.Hour})
	ctx := context.Background()

	require.NoError(t, l.AllowResetRequest(ctx, "a@example.com"))
	require.NoError(t, l.AllowResetRequest(ctx, "a@example.com"))
	require.ErrorIs(t, l.AllowResetRequest(ctx, "a@example.com"), ErrRateLimited)

	_, off := newLimiter(t, Config{})
	for i := 0; i < 10; i++ {
		require.NoError(t, off.AllowResetRequest(ctx, "a@example.com"))
	}
}

func TestRedisDownIsReported(t *testing.T) {
	mr, l := newLimiter(t, Config{MaxLoginAttempts: 1, LoginCooldownDuration: time.Minute})
	mr.Close()
	require.ErrorIs(t, l.CheckLogin(context.Background(), "a@example.com", ""), ErrRedisUnavailable)
	require.ErrorIs(t, l.RecordLoginFailure(context.Background(), "a@example.com", ""), ErrRedisUnavailable)
}

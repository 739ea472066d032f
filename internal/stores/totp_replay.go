package stores

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// TOTPReplayStore remembers which time steps a user has already redeemed.
type TOTPReplayStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewTOTPReplayStore(redisClient redis.UniversalClient, prefix string) *TOTPReplayStore {
	if prefix == "" {
		prefix = "aa:totp"
	}
	return &TOTPReplayStore{redis: redisClient, prefix: prefix}
}

// MarkUsed atomically claims step for the user. It returns false when the
// step was claimed before. ttl should cover the whole skew window.
func (s *TOTPReplayStore) MarkUsed(ctx context.Context, userID, step int64, ttl time.Duration) (bool, error) {
	key := s.prefix + ":" + strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(step, 10)
	ok, err := s.redis.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return ok, nil
}

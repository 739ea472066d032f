package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const challengeRecordVersion1 = 1

var (
	ErrChallengeNotFound = errors.New("login challenge not found")
	ErrChallengeExpired  = errors.New("login challenge expired")
	ErrChallengeBackend  = errors.New("login challenge backend unavailable")
)

// LoginChallenge marks a user whose password was accepted and who may now
// submit a second factor.
type LoginChallenge struct {
	UserID    int64
	ExpiresAt int64
	Attempts  uint16
}

// LoginChallengeStore keeps at most one open challenge per user.
type LoginChallengeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewLoginChallengeStore(redisClient redis.UniversalClient, prefix string) *LoginChallengeStore {
	if prefix == "" {
		prefix = "aa:lc"
	}
	return &LoginChallengeStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *LoginChallengeStore) key(userID int64) string {
	return s.prefix + ":" + strconv.FormatInt(userID, 10)
}

// Open replaces any earlier challenge for the user.
func (s *LoginChallengeStore) Open(ctx context.Context, userID int64, now time.Time, ttl time.Duration) error {
	encoded := encodeChallenge(&LoginChallenge{
		UserID:    userID,
		ExpiresAt: now.Add(ttl).Unix(),
	})
	if err := s.redis.Set(ctx, s.key(userID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return nil
}

// Get returns the open challenge, deleting it when it has expired at now.
func (s *LoginChallengeStore) Get(ctx context.Context, userID int64, now time.Time) (*LoginChallenge, error) {
	data, err := s.redis.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}

	record, err := decodeChallenge(data)
	if err != nil {
		return nil, err
	}
	if now.Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(userID)).Result()
		return nil, ErrChallengeExpired
	}
	return record, nil
}

// Close removes the challenge. It reports whether one existed.
func (s *LoginChallengeStore) Close(ctx context.Context, userID int64) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return n > 0, nil
}

// RecordFailure bumps the attempt counter. Once maxAttempts is reached the
// challenge is deleted and exceeded is true; the user must resubmit the
// password.
func (s *LoginChallengeStore) RecordFailure(ctx context.Context, userID int64, maxAttempts int, now time.Time) (bool, error) {
	const maxRetries = 4
	key := s.key(userID)

	for i := 0; i < maxRetries; i++ {
		var exceeded bool
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			record, err := decodeChallenge(data)
			if err != nil {
				return err
			}

			ttl := time.Unix(record.ExpiresAt, 0).Sub(now)
			record.Attempts++
			if int(record.Attempts) >= maxAttempts || ttl <= 0 {
				exceeded = int(record.Attempts) >= maxAttempts
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				if !exceeded {
					return ErrChallengeExpired
				}
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encodeChallenge(record), ttl)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return false, ErrChallengeNotFound
			}
			if errors.Is(err, ErrChallengeExpired) {
				return false, err
			}
			return false, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
		}
		return exceeded, nil
	}

	return false, ErrChallengeNotFound
}

func encodeChallenge(record *LoginChallenge) []byte {
	var buf bytes.Buffer
	buf.WriteByte(challengeRecordVersion1)
	_ = binary.Write(&buf, binary.BigEndian, record.Attempts)
	_ = binary.Write(&buf, binary.BigEndian, record.ExpiresAt)
	_ = binary.Write(&buf, binary.BigEndian, record.UserID)
	return buf.Bytes()
}

func decodeChallenge(data []byte) (*LoginChallenge, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != challengeRecordVersion1 {
		return nil, errors.New("invalid login challenge version")
	}

	record := &LoginChallenge{}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.UserID); err != nil {
		return nil, err
	}
	return record, nil
}

package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultStream is the outbox stream read by the mail worker.
const DefaultStream = "adminauth:notifications"

// RedisSender appends messages to a Redis stream. A separate consumer renders
// and mails them, so generated secrets never pass through the HTTP response.
type RedisSender struct {
	redis  redis.UniversalClient
	stream string
	maxLen int64
}

// NewRedisSender writes to stream, trimming it approximately to maxLen
// entries when maxLen > 0.
func NewRedisSender(client redis.UniversalClient, stream string, maxLen int64) *RedisSender {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisSender{redis: client, stream: stream, maxLen: maxLen}
}

func (s *RedisSender) Send(ctx context.Context, msg Message) error {
	values := make(map[string]interface{}, len(msg.Data)+2)
	for k, v := range msg.Data {
		values["data."+k] = v
	}
	values["recipient"] = msg.Recipient
	values["kind"] = string(msg.Kind)

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: values,
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.redis.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("notify: xadd %s: %w", s.stream, err)
	}
	return nil
}

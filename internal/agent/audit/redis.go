package audit

import (
	"context"

	"github.com/redis/go-redis/v9"

	errx "github.com/MedBuddy-core-poc-v1/server/internal/core/error"
)

// RedisStreamSink appends entries to a Redis stream as field "entry".
type RedisStreamSink struct {
	rdb    redis.Cmdable
	stream string
}

func NewRedisStreamSink(rdb redis.Cmdable, stream string) *RedisStreamSink {
	return &RedisStreamSink{rdb: rdb, stream: stream}
}

func (s *RedisStreamSink) Write(ctx context.Context, line []byte) error {
	err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{"entry": string(line)},
	}).Err()
	if err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (s *RedisStreamSink) Close() error {
	return nil
}

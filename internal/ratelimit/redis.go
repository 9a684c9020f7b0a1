package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/frenchline/adminapi/internal/xerrors"
)

// RedisWindow is a Store shared across instances. Each key holds a plain
// counter whose TTL is set when the window opens, so the window boundary is
// the first request rather than a wall-clock alignment.
type RedisWindow struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisWindow(rdb redis.Cmdable, prefix string) *RedisWindow {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisWindow{rdb: rdb, prefix: prefix}
}

func (s *RedisWindow) Allow(ctx context.Context, key string, max int, window time.Duration) (bool, error) {
	k := s.prefix + ":" + key

	count, err := s.rdb.Incr(ctx, k).Result()
	if err != nil {
		return false, xerrors.Wrap(err, "ratelimit incr")
	}
	if count == 1 {
		if err := s.rdb.Expire(ctx, k, window).Err(); err != nil {
			return false, xerrors.Wrap(err, "ratelimit expire")
		}
	}
	return count <= int64(max), nil
}

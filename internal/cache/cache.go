// Package cache fronts redis for read-mostly payloads like dashboard stats.
// Every method degrades gracefully so a redis outage slows the portal down
// instead of taking it down.
package cache

import (
	"context"
	"errors"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/frenchline/adminapi/internal/xerrors"
)

// ErrMiss means the key is absent. Callers fall through to the source of
// truth and usually repopulate.
var ErrMiss = errors.New("cache miss")

// redisAPI is the slice of the go-redis client the cache needs. Narrow so
// tests can fake it with the redis.New*Result constructors.
type redisAPI interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Cache wraps a redis client with JSON codec helpers and key namespacing.
type Cache struct {
	rdb    redisAPI
	prefix string

	// onOp, when set, receives "hit", "miss", or "error" per lookup
	onOp func(result string)
}

type Option func(*Cache)

// WithPrefix namespaces every key, keeping this app's entries separable from
// anything else on the same redis.
func WithPrefix(prefix string) Option {
	return func(c *Cache) { c.prefix = prefix }
}

// WithOnOp wires lookup outcomes into a metrics sink.
func WithOnOp(fn func(result string)) Option {
	return func(c *Cache) { c.onOp = fn }
}

// New builds a Cache over an already-configured redis client.
func New(rdb *redis.Client, opts ...Option) *Cache {
	return newCache(rdb, opts...)
}

func newCache(rdb redisAPI, opts ...Option) *Cache {
	c := &Cache{rdb: rdb, prefix: "fladmin"}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Cache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *Cache) record(result string) {
	if c.onOp != nil {
		c.onOp(result)
	}
}

// GetJSON loads key and unmarshals it into dest. Returns ErrMiss when the
// key is absent and a wrapped error when redis or decoding fails.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) error {
	raw, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.record("miss")
		return ErrMiss
	}
	if err != nil {
		c.record("error")
		return xerrors.Wrapf(err, "get %s", key)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.record("error")
		return xerrors.Wrapf(err, "decode %s", key)
	}
	c.record("hit")
	return nil
}

// SetJSON marshals value and stores it under key for ttl.
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return xerrors.Wrapf(err, "encode %s", key)
	}
	if err := c.rdb.Set(ctx, c.key(key), raw, ttl).Err(); err != nil {
		c.record("error")
		return xerrors.Wrapf(err, "set %s", key)
	}
	return nil
}

// Delete removes the given keys. Missing keys are not an error.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	namespaced := make([]string, len(keys))
	for i, k := range keys {
		namespaced[i] = c.key(k)
	}
	if err := c.rdb.Del(ctx, namespaced...).Err(); err != nil {
		return xerrors.Wrap(err, "delete keys")
	}
	return nil
}

// InvalidatePattern deletes every key matching the glob pattern, scanning in
// batches so large keyspaces never block redis.
func (c *Cache) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, c.key(pattern), 100).Result()
		if err != nil {
			return deleted, xerrors.Wrapf(err, "scan %s", pattern)
		}
		if len(keys) > 0 {
			n, err := c.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, xerrors.Wrap(err, "delete matched keys")
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// Ping reports whether redis is reachable. Used by the health endpoint.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return xerrors.Wrap(err, "ping redis")
	}
	return nil
}

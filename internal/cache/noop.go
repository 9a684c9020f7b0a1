package cache

import (
	"context"
	"time"
)

// Noop is the cache used when no redis is configured. Every read misses and
// every write is dropped, so callers always hit the source of truth.
type Noop struct{}

func (Noop) GetJSON(context.Context, string, any) error { return ErrMiss }

func (Noop) SetJSON(context.Context, string, any, time.Duration) error { return nil }

func (Noop) Delete(context.Context, ...string) error { return nil }

func (Noop) InvalidatePattern(context.Context, string) (int, error) { return 0, nil }

func (Noop) Ping(context.Context) error { return nil }

package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Store is a fixed-window counter consulted by the request pipeline. Allow
// reports whether the request identified by key fits within a budget of max
// requests per window. Admitted requests consume budget; denied requests do
// not.
type Store interface {
	Allow(ctx context.Context, key string, max int, window time.Duration) (bool, error)
}

type windowEntry struct {
	count   int
	resetAt time.Time
}

// Windowed is the in-memory Store. Counters persist until their window
// expires and are reused in place on the next request; there is no
// background eviction.
type Windowed struct {
	mu      sync.Mutex
	entries map[string]*windowEntry

	// test seam
	now func() time.Time
}

func NewWindowed() *Windowed {
	return &Windowed{
		entries: make(map[string]*windowEntry),
		now:     time.Now,
	}
}

func (s *Windowed) Allow(_ context.Context, key string, max int, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok {
		s.entries[key] = &windowEntry{count: 1, resetAt: now.Add(window)}
		return max >= 1, nil
	}

	// the window closes strictly after resetAt
	if now.After(e.resetAt) {
		e.count = 1
		e.resetAt = now.Add(window)
		return max >= 1, nil
	}

	if e.count < max {
		e.count++
		return true, nil
	}
	return false, nil
}

package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/frenchline/adminapi/internal/httpmw"
)

// visitor tracks a single IPs limiter and last activity
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	// logged tracks whether we have already emitted the first-denial log
	// resets when the entry is evicted and re-created
	logged bool
}

// IPLimiter holds per-IP token buckets with background eviction. It runs in
// front of the whole router, before any route budget is consulted.
type IPLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	// rate controls: requests per second and burst ceiling
	perSecond rate.Limit
	burst     int

	// ttl controls how long an idle IP stays in the map before cleanup evicts it
	ttl time.Duration

	// maxVisitors caps the visitor map size. New IPs are rejected once the
	// map is full until eviction frees capacity. 0 disables the cap.
	maxVisitors int
	// capacityLogged gates OnCapacity to one call per full episode
	capacityLogged bool

	// OnCapacity is called once when the visitor map first fills up
	OnCapacity func()

	// OnFirstDenied is called once per visitor when they first get rate limited
	// ip is the raw IP string (no port)
	OnFirstDenied func(ip string)

	// OnDenied is called on every denied request, used for incrementing prometheus counter
	OnDenied func(ip string)
}

type Option func(*IPLimiter)

// WithRate sets the request limit bucket size and the refill rate.
// burst is the total capacity of the bucket, perSecond is how many tokens
// are added to the bucket each second.
func WithRate(perSecond float64, burst int) Option {
	return func(l *IPLimiter) {
		l.perSecond = rate.Limit(perSecond)
		l.burst = burst
	}
}

// WithTTL controls how long an idle IP stays in the map before cleanup
func WithTTL(d time.Duration) Option {
	return func(l *IPLimiter) {
		l.ttl = d
	}
}

// WithOnFirstDenied sets a callback for the first denial per visitor, used
// for logging. Separate from OnDenied so offenders produce one log line but
// every denial still counts.
func WithOnFirstDenied(fn func(ip string)) Option {
	return func(l *IPLimiter) {
		l.OnFirstDenied = fn
	}
}

// WithOnDenied sets a callback for every denied request
func WithOnDenied(fn func(ip string)) Option {
	return func(l *IPLimiter) {
		l.OnDenied = fn
	}
}

// WithMaxVisitors caps how many distinct IPs are tracked at once. 0 means
// no cap.
func WithMaxVisitors(n int) Option {
	return func(l *IPLimiter) {
		l.maxVisitors = n
	}
}

// WithOnCapacity sets a callback fired once when the cap is first hit
func WithOnCapacity(fn func()) Option {
	return func(l *IPLimiter) {
		l.OnCapacity = fn
	}
}

// NewIPLimiter creates an IPLimiter and starts the background cleanup
// goroutine, which stops when ctx is cancelled.
func NewIPLimiter(ctx context.Context, opts ...Option) *IPLimiter {
	l := &IPLimiter{
		visitors:    make(map[string]*visitor),
		perSecond:   10,
		burst:       30,
		ttl:         5 * time.Minute,
		maxVisitors: 100000,
	}
	for _, o := range opts {
		o(l)
	}
	go l.cleanup(ctx)
	return l
}

// allow checks whether the given IP is within its rate limit, creating the
// visitor on first sight. Returns true if the request should proceed.
func (l *IPLimiter) allow(ip string) bool {
	l.mu.Lock()
	v, exists := l.visitors[ip]
	if !exists {
		if l.maxVisitors > 0 && len(l.visitors) >= l.maxVisitors {
			fireCapacity := !l.capacityLogged
			l.capacityLogged = true
			l.mu.Unlock()
			if fireCapacity && l.OnCapacity != nil {
				l.OnCapacity()
			}
			return false
		}
		v = &visitor{
			limiter: rate.NewLimiter(l.perSecond, l.burst),
		}
		l.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	allowed := v.limiter.Allow()

	if !allowed && !v.logged {
		v.logged = true
		// hooks may do slow work, release the lock first
		l.mu.Unlock()
		if l.OnFirstDenied != nil {
			l.OnFirstDenied(ip)
		}
		if l.OnDenied != nil {
			l.OnDenied(ip)
		}
		return false
	}

	l.mu.Unlock()

	if !allowed && l.OnDenied != nil {
		l.OnDenied(ip)
	}

	return allowed
}

// cleanup periodically evicts visitors that haven't been seen within the TTL.
// Runs every TTL/2 to avoid holding stale entries much longer than intended.
func (l *IPLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for ip, v := range l.visitors {
				if now.Sub(v.lastSeen) > l.ttl {
					delete(l.visitors, ip)
				}
			}
			if l.maxVisitors == 0 || len(l.visitors) < l.maxVisitors {
				l.capacityLogged = false
			}
			l.mu.Unlock()
		}
	}
}

// Middleware returns middleware that rejects requests over the per-ip rate limit with 429
func (l *IPLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := httpmw.ClientIPFromContext(r.Context())

		if !l.allow(ip) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
			// no detail about limits, remaining budget, or refill time
			w.Write([]byte(`{"error":"Rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

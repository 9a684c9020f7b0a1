// Package ratelimit provides the two rate limiting mechanisms used by the
// admin API.
//
// The fixed-window Store (Windowed in memory, RedisWindow backed by redis)
// enforces per-route request budgets inside the request pipeline: each
// client gets a counter per window that resets when the window expires.
//
// IPLimiter is a coarser per-IP token bucket applied at the edge of the
// whole server to absorb floods before they reach any route. It is a
// single-instance, in-memory limiter intended for basic abuse prevention;
// it does not protect against distributed attacks or bandwidth-bill
// attacks. For those, use an upstream WAF or CDN-level rate limiting.
package ratelimit

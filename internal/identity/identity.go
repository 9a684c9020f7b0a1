// Package identity resolves the caller behind an admin request. The request
// pipeline treats every resolution failure the same way (401); the tagged
// errors exist so internal logs can tell a missing cookie from a broken
// provider.
package identity

import (
	"context"
	"errors"
	"net/http"
)

// Caller is an authenticated admin user.
type Caller struct {
	ID    string
	Email string
	Role  string
}

var (
	// ErrNoSession means the request carried no session token at all.
	ErrNoSession = errors.New("no session")
	// ErrSessionExpired means the token was well formed but past its expiry.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionInvalid means the token was malformed or its signature
	// did not verify.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrProvider means the backing signer or user lookup failed.
	ErrProvider = errors.New("identity provider error")
)

// Resolver extracts and verifies the caller from a request.
type Resolver interface {
	Resolve(ctx context.Context, r *http.Request) (Caller, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, r *http.Request) (Caller, error)

func (f ResolverFunc) Resolve(ctx context.Context, r *http.Request) (Caller, error) {
	return f(ctx, r)
}

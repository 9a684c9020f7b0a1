package httpmw

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type clientIPKey struct{}

// ClientIPOptions configures client IP extraction behavior.
type ClientIPOptions struct {
	// TrustedHops is the number of trusted reverse proxies between the client
	// and this server. 0 = no proxies (X-Forwarded-For ignored), 1 = single
	// load balancer (rightmost XFF entry), 2 = CDN + LB, etc.
	TrustedHops int
}

// ClientIP extracts the client IP address from the request and stores it in
// the context. Uses default options (TrustedHops=0: X-Forwarded-For ignored).
func ClientIP(next http.Handler) http.Handler {
	return ClientIPWithOptions(ClientIPOptions{})(next)
}

// ClientIPWithOptions returns middleware that extracts the client IP using
// the given options.
func ClientIPWithOptions(opts ClientIPOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := resolveClientAddr(r, opts.TrustedHops)
			ctx := WithClientIP(r.Context(), ip)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveClientAddr extracts the client ip address from the request. The
// forwarded header is only trusted when the direct peer is a private address
// and trusted hops are configured; otherwise the header is stripped so no
// downstream middleware accidentally trusts it.
func resolveClientAddr(r *http.Request, trustedHops int) string {
	if r.RemoteAddr == "" {
		// should never happen
		return "0.0.0.0"
	}

	clientAddr, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	ip := net.ParseIP(clientAddr)
	if ip == nil {
		return "0.0.0.0"
	}

	if !ip.IsPrivate() || trustedHops <= 0 {
		r.Header.Del("X-Forwarded-For")
		r.Header.Del("X-Forwarded-Proto")
		return clientAddr
	}

	// trustedHops=1 takes the right-most X-Forwarded-For entry (single LB in
	// front), trustedHops=N the Nth-from-end entry. Fewer entries than
	// expected proxies means misconfiguration or manipulation: fail closed.
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		idx := len(parts) - trustedHops
		if idx < 0 {
			r.Header.Del("X-Forwarded-For")
			r.Header.Del("X-Forwarded-Proto")
			return clientAddr
		}
		if candidate := strings.TrimSpace(parts[idx]); net.ParseIP(candidate) != nil {
			clientAddr = candidate
		}
	}

	return clientAddr
}

func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// Package httpserver assembles the public API listener: chi routing plus
// the shared middleware chain, in a fixed order so every response carries
// the same headers and every request is attributed the same way.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/frenchline/adminapi/internal/httpmw"
	"github.com/frenchline/adminapi/internal/log"
	"github.com/frenchline/adminapi/internal/xerrors"
)

type Options struct {
	Logger log.Logger
	Port   int

	// APIRoutes mounts the business routes on the router.
	APIRoutes func(chi.Router)

	// MetricsMW instruments requests for prometheus.
	MetricsMW func(http.Handler) http.Handler

	// RateLimitMW is the per-IP flood guard, applied after client IP
	// resolution.
	RateLimitMW func(http.Handler) http.Handler

	ClientIPOpts httpmw.ClientIPOptions
	MaxBodyBytes int64

	// MaxBodyExempt skips the shared body limit for requests that carry
	// their own cap (media uploads).
	MaxBodyExempt func(*http.Request) bool

	OnPanic func()
}

// NewHandler builds the HTTP handler with routes + middleware.
// main() owns *http.Server so it can do graceful shutdown.
func NewHandler(opts *Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}

	r := chi.NewRouter()

	r.Use(middleware.Compress(5, "application/json"))

	// Annotate logger and tracer with http.route from chi route pattern
	r.Use(httpmw.AnnotateHTTPRoute)

	r.Use(httpmw.AccessLog())

	maxBody := opts.MaxBodyBytes
	if maxBody == 0 {
		maxBody = 1 << 20
	}
	r.Use(httpmw.MaxBodyExcept(maxBody, opts.MaxBodyExempt))

	if opts.APIRoutes != nil {
		opts.APIRoutes(r)
	}

	// Middleware (outermost first in wrapping order)
	var h http.Handler = r

	// Request-scoped logging (inner so it sees trace_id, etc)
	h = httpmw.WithLogger(opts.Logger)(h)

	if opts.MetricsMW != nil {
		h = opts.MetricsMW(h)
	}

	// add trace-id headers to any requests with a recording trace
	h = httpmw.TraceResponseHeaders("X-Trace-Id", "X-Span-Id")(h)

	h = otelhttp.NewHandler(
		h,
		"http.server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			// health checks are noise in traces
			return r.URL.Path != "/api/health"
		}),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			// AnnotateHTTPRoute will rename the span later to the final route pattern
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithPublicEndpointFn(func(r *http.Request) bool { return true }),
	)

	// Flood guard (after client IP mw so it uses resolved IP)
	if opts.RateLimitMW != nil {
		h = opts.RateLimitMW(h)
	}

	// Client IP resolution (must be before rate limiter and logging in middleware chain)
	h = httpmw.ClientIPWithOptions(opts.ClientIPOpts)(h)

	// Request ID (outer so everything downstream sees it)
	h = httpmw.RequestID("X-Request-Id")(h)

	// Recovery middleware to log panics and serve 500 response
	h = httpmw.Recover(opts.Logger, opts.OnPanic)(h)

	// Security headers outermost to ensure they are served on every response
	h = httpmw.SecurityHeaders(h)

	return h
}

// Server timeout defaults, shared with opshttp.
const (
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultReadTimeout       = 10 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultIdleTimeout       = 60 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20 // 1 MB
)

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		ReadTimeout:       DefaultReadTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		MaxHeaderBytes:    DefaultMaxHeaderBytes,
	}
}

// Start runs the public HTTP server, returning stop(ctx) for graceful
// shutdown.
func Start(ctx context.Context, opts *Options) (func(context.Context) error, error) {
	port := opts.Port
	if port == 0 {
		port = 8080
	}
	addr := fmt.Sprintf(":%d", port)

	handler := NewHandler(opts)
	srv := NewServer(addr, handler)

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp4", addr)
	if err != nil {
		return nil, xerrors.EnsureTrace(err)
	}

	go func() {
		opts.Logger.Info(ctx, "http server listening", "addr", addr)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			opts.Logger.Error(ctx, err, "http server error")
		}
	}()

	var once sync.Once
	stop := func(sctx context.Context) (retErr error) {
		once.Do(func() {
			opts.Logger.Info(sctx, "http server shutting down")
			c, cancel := context.WithTimeout(sctx, 5*time.Second)
			defer cancel()
			retErr = srv.Shutdown(c)
		})
		return retErr
	}
	return stop, nil
}

package httpmw

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/frenchline/adminapi/internal/log"
)

// responseWriter wraps http.ResponseWriter to capture status and bytes written.
type responseWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// WithLogger derives a request-scoped logger enriched with request metadata
// and stores it back into the context for handlers to pull via log.FromContext.
func WithLogger(base log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			reqID := RequestIDFromContext(ctx)
			clientAddr := ClientIPFromContext(ctx)

			// Normalize peer address to IP only (no port)
			peerAddr := r.RemoteAddr
			if host, _, err := net.SplitHostPort(peerAddr); err == nil {
				peerAddr = host
			}

			if span := trace.SpanFromContext(ctx); span != nil && span.IsRecording() {
				span.SetAttributes(
					attribute.String("request_id", reqID),
					attribute.String("client.address", clientAddr),
					attribute.String("network.peer.address", peerAddr),
				)
			}

			fields := []any{
				"request_id", reqID,
				"client.address", clientAddr,
				"network.peer.address", peerAddr,
				"server.address", r.Host,
				"http.request.method", r.Method,
				"url.path", r.URL.Path,
			}
			if q := r.URL.RawQuery; q != "" {
				fields = append(fields, "url.query", q)
			}

			L := base.With(fields...)
			ctx = log.WithContext(ctx, L)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessLog emits one structured record per completed request.
func AccessLog() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			var reqBodySize int64
			if r.ContentLength > 0 {
				reqBodySize = r.ContentLength
			}

			rw := &responseWriter{ResponseWriter: w}
			next.ServeHTTP(rw, r)

			// skip health endpoints, they fire every few seconds
			if strings.HasPrefix(r.URL.Path, "/-/") {
				return
			}

			ctx := r.Context()
			L := log.FromContext(ctx)

			status := rw.status
			if status == 0 {
				status = http.StatusOK
			}

			// get route pattern for http.route
			routePat := ""
			if rc := chi.RouteContext(ctx); rc != nil {
				routePat = rc.RoutePattern()
			}
			if routePat == "" {
				routePat = r.URL.Path
			}

			L.Info(ctx, "http request",
				"http.response.status_code", status,
				"http.server.request.duration", time.Since(start).Seconds(),
				"http.response.body.size", rw.bytes,
				"http.request.body.size", reqBodySize,
				"http.route", routePat,
			)
		})
	}
}

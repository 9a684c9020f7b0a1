package httpserver

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newTestHandler(t *testing.T, opts *Options) http.Handler {
	t.Helper()
	if opts == nil {
		opts = &Options{}
	}
	if opts.APIRoutes == nil {
		opts.APIRoutes = func(r chi.Router) {
			r.Get("/api/ping", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("pong"))
			})
			r.Get("/api/boom", func(w http.ResponseWriter, r *http.Request) {
				panic("boom")
			})
		}
	}
	return NewHandler(opts)
}

func TestSecurityHeadersOnEveryResponse(t *testing.T) {
	h := newTestHandler(t, nil)

	for _, path := range []string{"/api/ping", "/does-not-exist"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
			t.Fatalf("%s: X-Frame-Options = %q", path, got)
		}
		if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
			t.Fatalf("%s: X-Content-Type-Options = %q", path, got)
		}
	}
}

func TestRequestIDIssued(t *testing.T) {
	h := newTestHandler(t, nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ping", nil))

	if id := w.Header().Get("X-Request-Id"); len(id) != 32 {
		t.Fatalf("X-Request-Id = %q, want 32 hex chars", id)
	}
	if w.Body.String() != "pong" {
		t.Fatalf("body = %q", w.Body.String())
	}
}

func TestPanicBecomes500WithHeaders(t *testing.T) {
	var panics int
	h := newTestHandler(t, &Options{OnPanic: func() { panics++ }})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if panics != 1 {
		t.Fatalf("panics = %d, want 1", panics)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options = %q on panic response", got)
	}
}

func TestRateLimitMWRuns(t *testing.T) {
	h := newTestHandler(t, &Options{
		RateLimitMW: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			})
		},
	})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
}

func TestMaxBodyEnforced(t *testing.T) {
	var readErr error
	h := newTestHandler(t, &Options{
		MaxBodyBytes: 8,
		APIRoutes: func(r chi.Router) {
			r.Post("/api/echo", func(w http.ResponseWriter, r *http.Request) {
				buf := make([]byte, 64)
				_, readErr = r.Body.Read(buf)
			})
		},
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/echo", strings.NewReader(strings.Repeat("x", 64)))
	h.ServeHTTP(w, req)

	var maxErr *http.MaxBytesError
	if !errors.As(readErr, &maxErr) {
		t.Fatalf("expected MaxBytesError, got %v", readErr)
	}
}

func TestMaxBodyExemptSkipsLimit(t *testing.T) {
	var got int
	var readErr error
	h := newTestHandler(t, &Options{
		MaxBodyBytes:  8,
		MaxBodyExempt: func(r *http.Request) bool { return r.URL.Path == "/api/upload" },
		APIRoutes: func(r chi.Router) {
			r.Post("/api/upload", func(w http.ResponseWriter, r *http.Request) {
				var b []byte
				b, readErr = io.ReadAll(r.Body)
				got = len(b)
			})
		},
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(strings.Repeat("x", 64)))
	h.ServeHTTP(w, req)

	if readErr != nil {
		t.Fatalf("read error = %v", readErr)
	}
	if got != 64 {
		t.Fatalf("read %d bytes, want 64", got)
	}
}

package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	var got string
	h := RequestID("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if got == "" {
		t.Fatal("no request id in context")
	}
	if len(got) != 32 {
		t.Fatalf("request id %q, want 32 hex chars", got)
	}
	if echo := rec.Header().Get("X-Request-Id"); echo != got {
		t.Fatalf("response header %q, context id %q", echo, got)
	}
}

func TestRequestID_PropagatesExisting(t *testing.T) {
	var got string
	h := RequestID("X-Request-Id")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("X-Request-Id", "upstream-id-123")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got != "upstream-id-123" {
		t.Fatalf("context id %q, want upstream-id-123", got)
	}
	if echo := rec.Header().Get("X-Request-Id"); echo != "upstream-id-123" {
		t.Fatalf("response header %q, want upstream-id-123", echo)
	}
}

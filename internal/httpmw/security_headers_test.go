package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

var requiredSecurityHeaders = map[string]string{
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
	"X-Content-Type-Options":    "nosniff",
	"X-Frame-Options":           "DENY",
	"Referrer-Policy":           "origin-when-cross-origin",
	"X-XSS-Protection":          "1; mode=block",
	"Permissions-Policy":        "camera=(), microphone=(), geolocation=()",
	"X-DNS-Prefetch-Control":    "off",
}

func TestSecurityHeaders_AllPresent(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	SecurityHeaders(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	for header, want := range requiredSecurityHeaders {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestSecurityHeaders_PresentOnErrorResponses(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})

	rec := httptest.NewRecorder()
	SecurityHeaders(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	for header, want := range requiredSecurityHeaders {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestSecurityHeaders_Idempotent(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	SecurityHeaders(SecurityHeaders(handler)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	for header := range requiredSecurityHeaders {
		if n := len(rec.Header().Values(header)); n != 1 {
			t.Errorf("%s has %d values after double application, want 1", header, n)
		}
	}
}

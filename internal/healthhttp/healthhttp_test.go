package healthhttp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
)

func do(t *testing.T, services map[string]ServiceCheck) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	Handler(services)(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return w.Code, body
}

func TestHealthy(t *testing.T) {
	code, body := do(t, map[string]ServiceCheck{
		"database": func(context.Context) error { return nil },
		"cache":    func(context.Context) error { return nil },
	})
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["status"] != "ok" {
		t.Fatalf("status field = %v", body["status"])
	}
	services := body["services"].(map[string]any)
	if services["database"] != "ok" || services["cache"] != "ok" {
		t.Fatalf("services = %v", services)
	}
	if body["timestamp"] == "" {
		t.Fatal("expected timestamp")
	}
}

func TestDegraded(t *testing.T) {
	code, body := do(t, map[string]ServiceCheck{
		"database": func(context.Context) error { return nil },
		"cache":    func(context.Context) error { return errors.New("down") },
	})
	if code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", code)
	}
	if body["status"] != "degraded" {
		t.Fatalf("status field = %v", body["status"])
	}
	services := body["services"].(map[string]any)
	if services["cache"] != "unavailable" || services["database"] != "ok" {
		t.Fatalf("services = %v", services)
	}
}

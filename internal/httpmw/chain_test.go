package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func appendMW(order *[]string, name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*order = append(*order, name)
			next.ServeHTTP(w, r)
		})
	}
}

func TestChain_OrderOuterToInner(t *testing.T) {
	var order []string
	h := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}),
		appendMW(&order, "first"),
		appendMW(&order, "second"),
		appendMW(&order, "third"),
	)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	want := []string{"first", "second", "third", "handler"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestChain_SkipsNil(t *testing.T) {
	called := false
	h := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }),
		nil,
	)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if !called {
		t.Fatal("handler not reached through nil middleware")
	}
}

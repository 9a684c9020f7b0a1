package httpmw

import "net/http"

// MaxBody limits request body size. Requests exceeding the limit
// receive 413 Request Entity Too Large when the body is read.
func MaxBody(bytes int64) func(http.Handler) http.Handler {
	return MaxBodyExcept(bytes, nil)
}

// MaxBodyExcept is MaxBody with a skip predicate for routes that enforce
// their own body cap, such as media uploads.
func MaxBodyExcept(bytes int64, skip func(*http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip == nil || !skip(r) {
				r.Body = http.MaxBytesReader(w, r.Body, bytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

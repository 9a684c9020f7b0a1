package httpmw

import (
	"net/http"

	"github.com/frenchline/adminapi/internal/log"
	"github.com/frenchline/adminapi/internal/xerrors"
)

// Recover catches panics escaping the handler chain, logs them with a stack,
// and serves a plain 500. onPanic (optional) runs on every recovered panic,
// e.g. to increment a prometheus counter.
func Recover(logger log.Logger, onPanic func()) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if onPanic != nil {
					onPanic()
				}

				var err error
				switch v := rec.(type) {
				case error:
					err = xerrors.WithStack(v)
				default:
					err = xerrors.Newf("panic: %v", v)
				}

				logger.Error(r.Context(), err, "panic recovered",
					"method", r.Method,
					"path", r.URL.Path,
				)

				// headers may already be written; best effort
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

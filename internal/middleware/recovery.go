package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"formbuilder/internal/httputil"
)

// Recovery turns a handler panic into a 500 problem response. When the
// handler already started writing, the connection is left as is.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := wrapWriter(w)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("panic recovered",
					"error", rec,
					"path", r.URL.Path,
					"method", r.Method,
					"stack", string(debug.Stack()),
				)

				if sw.wroteHeader {
					return
				}
				problem := httputil.NewProblem(http.StatusInternalServerError, "internal server error")
				problem.Instance = r.URL.Path
				httputil.RespondProblem(sw, problem)
			}()

			next.ServeHTTP(sw, r)
		})
	}
}

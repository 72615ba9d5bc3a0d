package middleware

import (
	"net/http"
	"runtime/debug"

	"go-storefront/utils"
)

// RecoverMiddleware turns a panicking handler into a 500 response.
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				LoggerFromContext(r.Context()).
					WithField("panic", rec).
					WithField("stack", string(debug.Stack())).
					Error("handler panicked")
				utils.WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

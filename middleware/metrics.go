package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"go-storefront/metrics"
)

// MetricsMiddleware records HTTP metrics for each request
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		done := metrics.InFlight()
		defer done()

		rw := wrapResponseWriter(w)
		next.ServeHTTP(rw, r)

		// Use route pattern if available
		path := "unmatched"
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		metrics.RecordHTTPRequest(r.Method, path, rw.statusCode, time.Since(start))
	})
}

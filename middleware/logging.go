package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const (
	TraceIDHeader = "X-Trace-ID"

	loggerContextKey = contextKey("logger")
)

// LoggerFromContext returns the request-scoped logger, or the standard
// logrus logger outside a request.
func LoggerFromContext(ctx context.Context) logrus.FieldLogger {
	if entry, ok := ctx.Value(loggerContextKey).(*logrus.Entry); ok {
		return entry
	}
	return logrus.StandardLogger()
}

// responseWriter captures the status code written by a handler
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

// LoggingMiddleware logs HTTP requests with trace ID
func LoggingMiddleware(log logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			traceID := r.Header.Get(TraceIDHeader)
			if traceID == "" {
				traceID = uuid.NewString()
			}
			w.Header().Set(TraceIDHeader, traceID)

			entry := log.WithFields(logrus.Fields{
				"trace_id": traceID,
				"method":   r.Method,
				"path":     r.URL.Path,
			})
			ctx := context.WithValue(r.Context(), loggerContextKey, entry)

			rw := wrapResponseWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			fields := logrus.Fields{
				"status":   rw.statusCode,
				"duration": time.Since(start).String(),
				"remote":   r.RemoteAddr,
			}
			switch {
			case rw.statusCode >= 500:
				entry.WithFields(fields).Error("request failed")
			case rw.statusCode >= 400:
				entry.WithFields(fields).Warn("request rejected")
			default:
				entry.WithFields(fields).Info("request handled")
			}
		})
	}
}

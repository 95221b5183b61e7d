package middleware

import (
	"net/http"
	"time"

	"github.com/go-kit/log"
)

// LogRequests returns a middleware which logs every request with its status and duration,
// so that we can see what requests the server is handling
func LogRequests(logger log.Logger) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		// type our middleware as an http.HandlerFunc so that it is seen as an http.Handler
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// wrap the original response writer so we can capture response details
			wrappedWriter := wrapResponseWriter(w)
			start := time.Now() // request start time

			// serve the inner request
			h.ServeHTTP(wrappedWriter, r)

			_ = logger.Log("status", wrappedWriter.Status(),
				"method", r.Method,
				"uri", r.URL.String(),
				"duration", time.Since(start))
		})
	}
}

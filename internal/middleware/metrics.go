package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// HTTPRecorder is satisfied by metrics.Collector.
type HTTPRecorder interface {
	RecordHTTPRequest(method, path string, status int, d time.Duration)
	InFlightInc()
	InFlightDec()
}

// Metrics tracks request counts and latency, labelled by route pattern.
func Metrics(rec HTTPRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec.InFlightInc()
			defer rec.InFlightDec()

			start := time.Now()
			wrapped := wrap(w)
			next.ServeHTTP(wrapped, r)

			path := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				path = rc.RoutePattern()
			}
			rec.RecordHTTPRequest(r.Method, path, wrapped.statusCode, time.Since(start))
		})
	}
}

package middleware

import (
	"net/http"
	"time"

	"github.com/templui/accounts/internal/metrics"
)

// Metrics records request count and latency per matched route pattern.
// Middleware between it and the ServeMux must pass the request through
// unchanged, or the pattern set by the mux is not visible here.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := wrapResponseWriter(w)

			next.ServeHTTP(rw, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			m.ObserveRequest(r.Method, route, rw.statusCode, time.Since(start))
		})
	}
}

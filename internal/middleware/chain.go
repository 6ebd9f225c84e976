package middleware

import (
	"net/http"
	"slices"
)

// Chain wraps h with middlewares so that the first one listed sees the
// request first. The server stack is
//
//	Chain(mux, RequestLogging, Metrics(m), Recover)
//
// which keeps Recover innermost: a panic becomes a 500 that the logger and
// the request counter still record.
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for _, wrap := range slices.Backward(middlewares) {
		h = wrap(h)
	}
	return h
}

package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/vistly/vistly/internal/metrics"
)

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Metrics returns a middleware that records Prometheus metrics.
func Metrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r)

			duration := time.Since(start)
			path := normalizePath(r.URL.Path)
			metrics.RecordRequest(r.Method, path, rw.statusCode, duration)
		})
	}
}

// normalizePath normalizes the URL path for metrics labels.
// This prevents high cardinality from dynamic path segments.
func normalizePath(path string) string {
	switch {
	case path == "/health" || path == "/ready" || path == "/metrics":
		return path
	case path == "/api/v1/feed" || path == "/api/v1/leaderboard":
		return path
	case path == "/api/v1/visits" || path == "/api/v1/follows" || path == "/api/v1/signup-check":
		return path
	case strings.HasPrefix(path, "/api/v1/visits/"):
		return "/api/v1/visits/{id}"
	case strings.HasPrefix(path, "/api/v1/lists/"):
		return "/api/v1/lists/{id}/items"
	default:
		return "/other"
	}
}

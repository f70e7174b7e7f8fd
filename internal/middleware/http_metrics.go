// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// normalizePath maps request paths onto stable route labels to prevent
// cardinality explosion in metrics.
func normalizePath(path string) string {
	staticRoutes := map[string]bool{
		"/":                     true,
		"/health":               true,
		"/ready":                true,
		"/metrics":              true,
		"/api/v1/news/query":    true,
		"/api/v1/news/category": true,
		"/api/v1/news/source":   true,
		"/api/v1/news/search":   true,
		"/api/v1/news/score":    true,
		"/api/v1/news/nearby":   true,
		"/api/v1/news/trending": true,
	}

	if staticRoutes[path] {
		return path
	}

	// /api/v1/news/{id} style lookups collapse to one label.
	if strings.HasPrefix(path, "/api/v1/news/") {
		parts := strings.Split(path, "/")
		if len(parts) == 5 && parts[4] != "" {
			return "/api/v1/news/{id}"
		}
	}

	// Unknown paths share a single bucket so scanners cannot inflate the
	// label space.
	return "/unknown"
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

// WriteHeader captures the status code before writing it.
func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// HTTPMetrics is a middleware that records request count, latency, and
// request/response sizes per method, normalized path, and status.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			mrw := newMetricsResponseWriter(w)
			next.ServeHTTP(mrw, r)

			duration := time.Since(start).Seconds()
			path := normalizePath(r.URL.Path)
			status := strconv.Itoa(mrw.statusCode)

			metrics.ObserveHTTPRequest(r.Method, path, status, duration, r.ContentLength, mrw.size)
		})
	}
}

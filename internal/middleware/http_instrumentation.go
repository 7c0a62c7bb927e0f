package middleware

import (
	"net/http"
	"strconv"

	"github.com/bonfire-gw/bonfire/internal/metrics"
)

// HTTPServerInstrumentation counts served HTTP requests. Durations are not
// collected as WebSocket requests live as long as session.
func HTTPServerInstrumentation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &statusResponseWriter{ResponseWriter: w}
		next.ServeHTTP(rw, r)
		status := strconv.Itoa(rw.Status())
		metrics.HTTPRequestsTotal.WithLabelValues(r.URL.Path, r.Method, status).Inc()
	})
}

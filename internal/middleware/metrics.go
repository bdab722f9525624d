package middleware

import (
	"net/http"
	"strconv"
	"time"

	"realtime-voice-gateway/internal/infra/metrics"

	"github.com/gorilla/mux"
)

// MetricsMiddleware records request counts and latency labelled by the matched route name.
func MetricsMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrappedWriter := newResponseWriter(w)
			start := time.Now()

			next.ServeHTTP(wrappedWriter, r)

			route := routeName(r)
			m.RequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
			m.RequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(wrappedWriter.statusCode)).Inc()
		})
	}
}

func routeName(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return "unmatched"
	}
	if name := route.GetName(); name != "" {
		return name
	}
	if tpl, err := route.GetPathTemplate(); err == nil {
		return tpl
	}
	return "unnamed"
}

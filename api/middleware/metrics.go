package middleware

import (
	"net/http"

	"talk-lab/observability"
)

// Metrics counts every request served, for the debug endpoint.
func Metrics(monitoring *observability.MonitoringManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			monitoring.IncrRequestsServed()
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"net/http"
	"time"

	"github.com/zatekoja/hospitalqueue/internal/infrastructure/observability"
	"go.opentelemetry.io/otel/attribute"
)

// ObservabilityMiddleware opens a span per request and records the request
// count and latency, keyed by the route pattern
func ObservabilityMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := observability.StartSpan(r.Context(), "http.request")
			defer span.End()

			rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()
			r = r.WithContext(ctx)

			next.ServeHTTP(rw, r)

			// the mux fills Pattern on the request it routed
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			span.SetName(route)
			observability.SetSpanAttributes(span,
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.Int("http.status_code", rw.statusCode),
			)
			if rw.statusCode >= http.StatusInternalServerError {
				span.SetAttributes(attribute.Bool("error", true))
			}
			observability.RecordRequestMetric(ctx, metrics, r.Method, route, rw.statusCode, time.Since(start))
		})
	}
}

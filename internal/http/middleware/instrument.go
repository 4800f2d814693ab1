package middleware

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
)

var (
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
)

// InitHTTPMetrics registers the Prometheus metrics recorded by the
// Instrument middleware. Call once at startup.
func InitHTTPMetrics() {
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopmetrics",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests served.",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shopmetrics",
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "path"},
	)
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration)
}

// Instrument records request counts and durations for every route
// except the metrics and health endpoints themselves.
func Instrument(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		next(ctx)

		path := string(ctx.Path())
		if path == "/metrics" || path == "/healthz" {
			return
		}
		if httpRequestsTotal == nil {
			return
		}

		method := string(ctx.Method())
		status := strconv.Itoa(ctx.Response.StatusCode())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

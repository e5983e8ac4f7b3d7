// Package metrics holds the Prometheus collectors of the service and small
// helpers to record into them.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_server_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_server_requests_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status_code"},
	)

	// Upstream (Kinopoisk) calls
	upstreamCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_call_duration_seconds",
			Help:    "Kinopoisk API call duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"endpoint", "status_code"},
	)

	// Movie cache lookups
	movieCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movie_cache_lookups_total",
			Help: "Movie resolutions by outcome",
		},
		[]string{"result"}, // hit, miss, error
	)

	// Favorite ledger operations
	favoriteOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "favorite_operations_total",
			Help: "Favorite link/unlink operations",
		},
		[]string{"operation", "status"},
	)

	// Rate limiting
	rateLimitDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_dropped_total",
			Help: "Total number of requests dropped due to rate limiting",
		},
		[]string{"backend"}, // redis or local
	)

	// Queue
	queueOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_operations_total",
			Help: "Total number of queue operations",
		},
		[]string{"operation", "status"}, // publish/consume, success/failure/dropped
	)
)

var registerOnce sync.Once

// Register adds all collectors to reg. Repeated calls are no-ops.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			upstreamCallDuration,
			movieCacheLookupsTotal,
			favoriteOperationsTotal,
			rateLimitDroppedTotal,
			queueOperationsTotal,
		)
	})
}

// HTTPMiddleware records request count and latency per route.
func HTTPMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				// Only reached when nothing further in the chain has already
				// handed err to c.Error; take the status from an echo error.
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			code := strconv.Itoa(status)
			httpRequestsTotal.WithLabelValues(c.Request().Method, route, code).Inc()
			httpRequestDuration.WithLabelValues(c.Request().Method, route, code).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// RecordUpstreamCall records one Kinopoisk round trip. statusCode is 0
// when no response was received.
func RecordUpstreamCall(endpoint string, statusCode int, d time.Duration) {
	upstreamCallDuration.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Observe(d.Seconds())
}

// RecordMovieLookup records a resolve outcome: "hit", "miss" or "error".
func RecordMovieLookup(result string) {
	movieCacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordFavoriteOperation records a ledger operation outcome.
func RecordFavoriteOperation(operation, status string) {
	favoriteOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordRateLimitDrop records a rejected request.
func RecordRateLimitDrop(backend string) {
	rateLimitDroppedTotal.WithLabelValues(backend).Inc()
}

// RecordQueueOperation records queue operations.
func RecordQueueOperation(operation, status string) {
	queueOperationsTotal.WithLabelValues(operation, status).Inc()
}

// Handler returns the Prometheus exposition handler for echo.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kabinaview",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kabinaview",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kabinaview",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Viewer metrics
	FramesRendered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kabinaview",
		Subsystem: "viewer",
		Name:      "frames_rendered_total",
		Help:      "Total frames produced, by view and staleness",
	}, []string{"view", "stale"})

	CommandsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kabinaview",
		Subsystem: "viewer",
		Name:      "commands_total",
		Help:      "Total operator commands handled",
	}, []string{"command"})

	RoutesNotFound = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kabinaview",
		Subsystem: "viewer",
		Name:      "routes_not_found_total",
		Help:      "Route lookups that matched no legs",
	})

	EntitiesOutOfBox = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kabinaview",
		Subsystem: "viewer",
		Name:      "entities_out_of_box_total",
		Help:      "Entities projected from outside the configured bounding box",
	}, []string{"kind"})

	EntitiesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kabinaview",
		Subsystem: "viewer",
		Name:      "entities_skipped_total",
		Help:      "Entities or stops skipped because of missing coordinates",
	}, []string{"kind"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kabinaview",
		Subsystem: "viewer",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of data-access fetches",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"operation"})

	FetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kabinaview",
		Subsystem: "viewer",
		Name:      "fetch_errors_total",
		Help:      "Total data-access errors",
	}, []string{"operation"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kabinaview",
		Subsystem: "viewer",
		Name:      "active_sessions",
		Help:      "Current number of open viewer sessions",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kabinaview",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kabinaview",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kabinaview",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kabinaview",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kabinaview",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kabinaview",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// ObserveFetch records the outcome of one data-access call.
func ObserveFetch(operation string, start time.Time, err error) {
	FetchDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		FetchErrors.WithLabelValues(operation).Inc()
	}
}

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics copies connection counts from a pool stat value.
// Accepting an interface keeps pgxpool out of this package.
func UpdateDBPoolMetrics(stat interface{}) {
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}
}

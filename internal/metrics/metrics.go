// Package metrics exposes Prometheus collectors for draws, sessions and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lucky_draw"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	drawsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "draws",
			Name:      "started_total",
			Help:      "Total number of draws that started spinning.",
		},
	)

	drawsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "draws",
			Name:      "completed_total",
			Help:      "Total number of committed draws.",
		},
		[]string{"recorded"},
	)

	drawsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "draws",
			Name:      "rejected_total",
			Help:      "Total number of draw requests that did not start.",
		},
		[]string{"reason"},
	)

	winners = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "draws",
			Name:      "winners_total",
			Help:      "Total number of winners committed.",
		},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Number of sessions held in memory.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(
		drawsStarted,
		drawsCompleted,
		drawsRejected,
		winners,
		activeSessions,
		httpRequests,
		httpDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request counts and latency keyed by the matched route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordDrawStarted counts a draw that began spinning.
func RecordDrawStarted() {
	drawsStarted.Inc()
}

// RecordDrawRejected counts a draw request that did not start.
func RecordDrawRejected(reason string) {
	drawsRejected.WithLabelValues(reason).Inc()
}

// RecordDrawCompleted counts a committed draw and its winners.
func RecordDrawCompleted(winnerCount int, recorded bool) {
	drawsCompleted.WithLabelValues(strconv.FormatBool(recorded)).Inc()
	if recorded {
		winners.Add(float64(winnerCount))
	}
}

// SetActiveSessions sets the in-memory session gauge.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

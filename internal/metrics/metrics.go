package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	attemptsStarted    *prometheus.CounterVec
	attemptsFinalized  *prometheus.CounterVec
	answersRecorded    prometheus.Counter
	guardConflicts     *prometheus.CounterVec
	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
)

// RegisterMetrics registers the collectors with the default registry.
func RegisterMetrics() {
	registerOnce.Do(func() {
		attemptsStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_attempts_started_total",
			Help: "Attempts started, labelled by whether an existing attempt was resumed.",
		}, []string{"resumed"})

		attemptsFinalized = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_attempts_finalized_total",
			Help: "Attempts that left in_progress, by terminal status.",
		}, []string{"status"})

		answersRecorded = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_answers_recorded_total",
			Help: "Answers written to in-progress attempts.",
		})

		guardConflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_attempt_guard_conflicts_total",
			Help: "Conditional attempt writes that lost to a concurrent update.",
		}, []string{"operation"})

		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_http_requests_total",
			Help: "HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quiz_http_latency_seconds",
			Help:    "Latency distribution for HTTP requests.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		prometheus.MustRegister(attemptsStarted, attemptsFinalized, answersRecorded, guardConflicts, httpRequestsTotal, httpLatencySeconds)
	})
}

func AttemptStarted(resumed bool) {
	RegisterMetrics()
	attemptsStarted.WithLabelValues(strconv.FormatBool(resumed)).Inc()
}

func AttemptFinalized(status string) {
	RegisterMetrics()
	attemptsFinalized.WithLabelValues(status).Inc()
}

func AnswerRecorded() {
	RegisterMetrics()
	answersRecorded.Inc()
}

func GuardConflict(operation string) {
	RegisterMetrics()
	guardConflicts.WithLabelValues(operation).Inc()
}

// FinalizedCounter exposes the finalized counter for tests and dashboards.
func FinalizedCounter() *prometheus.CounterVec {
	RegisterMetrics()
	return attemptsFinalized
}

// Middleware records request count and latency per route.
func Middleware() gin.HandlerFunc {
	RegisterMetrics()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpLatencySeconds.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the prometheus scrape endpoint.
func Handler() gin.HandlerFunc {
	RegisterMetrics()
	return gin.WrapH(promhttp.Handler())
}

package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// serverMetrics holds the Prometheus collectors on a private registry so
// multiple server instances (tests included) never collide on registration.
type serverMetrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	verdictsTotal   *prometheus.CounterVec
	cacheHitsTotal  prometheus.Counter
}

func newServerMetrics() *serverMetrics {
	m := &serverMetrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ctp_http_requests_total",
			Help: "HTTP requests processed, by method, path and status code.",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ctp_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		verdictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ctp_eligibility_verdicts_total",
			Help: "Pre-eligibility verdicts rendered, by outcome.",
		}, []string{"eligible"}),
		cacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ctp_verdict_cache_hits_total",
			Help: "Pre-eligibility requests served from the verdict cache.",
		}),
	}

	m.registry.MustRegister(m.requestsTotal, m.requestDuration, m.verdictsTotal, m.cacheHitsTotal)
	return m
}

// middleware records request counts and latency per route.
func (m *serverMetrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.requestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// handler serves the registry in Prometheus exposition format.
func (m *serverMetrics) handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// recordVerdict counts a rendered verdict by outcome.
func (m *serverMetrics) recordVerdict(eligible bool) {
	m.verdictsTotal.WithLabelValues(strconv.FormatBool(eligible)).Inc()
}

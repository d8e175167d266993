package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// unmatchedRoute labels requests no route matched, so random paths cannot
// grow the label set.
const unmatchedRoute = "unmatched"

// HTTPMetrics counts and times requests per route template.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	factory := promauto.With(reg)
	return &HTTPMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status", "service"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint", "service"}),
		inFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Requests currently being served, websocket sessions included",
		}, []string{"service"}),
	}
}

// Middleware records every request served under service.
func (m *HTTPMetrics) Middleware(service string) gin.HandlerFunc {
	inFlight := m.inFlight.WithLabelValues(service)
	return func(c *gin.Context) {
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = unmatchedRoute
		}
		inFlight.Inc()
		start := time.Now()
		defer func() {
			inFlight.Dec()
			m.requests.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status()), service).Inc()
			m.duration.WithLabelValues(c.Request.Method, endpoint, service).Observe(time.Since(start).Seconds())
		}()
		c.Next()
	}
}

var defaultHTTPMetrics = NewHTTPMetrics(prometheus.DefaultRegisterer)

// PrometheusMiddleware records requests on the default registry served by
// /metrics.
func PrometheusMiddleware(service string) gin.HandlerFunc {
	return defaultHTTPMetrics.Middleware(service)
}

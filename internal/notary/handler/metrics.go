package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starnotary_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "starnotary_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	blocksAppendedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "starnotary_blocks_appended_total",
		Help: "Total star blocks appended to the ledger.",
	})

	chainHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "starnotary_chain_height",
		Help: "Height of the newest block.",
	})

	signatureChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starnotary_signature_checks_total",
		Help: "Signature submissions by verification result.",
	}, []string{"result"})

	integrityChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starnotary_integrity_checks_total",
		Help: "Background ledger integrity checks by result.",
	}, []string{"result"})

	validationRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "starnotary_validation_requests",
		Help: "Validation requests currently tracked, expired ones included.",
	})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		requestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordBlockAppended counts an appended block and moves the height gauge.
func RecordBlockAppended(height uint64) {
	blocksAppendedTotal.Inc()
	SetChainHeight(height)
}

// SetChainHeight sets the chain height gauge.
func SetChainHeight(height uint64) {
	chainHeight.Set(float64(height))
}

// RecordSignatureCheck records a signature verification verdict.
func RecordSignatureCheck(result string) {
	signatureChecksTotal.WithLabelValues(result).Inc()
}

// SetValidationRequests sets the tracked validation request gauge.
func SetValidationRequests(n int) {
	validationRequests.Set(float64(n))
}

// RecordIntegrityCheck records a background ledger integrity check.
func RecordIntegrityCheck(success bool) {
	if success {
		integrityChecksTotal.WithLabelValues("success").Inc()
	} else {
		integrityChecksTotal.WithLabelValues("failure").Inc()
	}
}

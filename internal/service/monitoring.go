package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ifuryst/agripost/internal/models"
	"github.com/ifuryst/agripost/internal/store"
)

const metricsNamespace = "agripost"

// MonitoringService owns the Prometheus collectors for publishing and the
// post lifecycle.
type MonitoringService struct {
	logger   *zap.Logger
	registry *prometheus.Registry

	PublishTotal    *prometheus.CounterVec
	PublishDuration *prometheus.HistogramVec
	Transitions     *prometheus.CounterVec
	Posts           *prometheus.GaugeVec
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

func NewMonitoringService(logger *zap.Logger) *MonitoringService {
	m := &MonitoringService{
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}

	m.PublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "publish_total",
			Help:      "Publish attempts per platform and result",
		},
		[]string{"platform", "result"},
	)

	m.PublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "publish_duration_seconds",
			Help:      "Duration of publish calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"platform"},
	)

	m.Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "post_transitions_total",
			Help:      "Lifecycle transitions by target status",
		},
		[]string{"status"},
	)

	m.Posts = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "posts",
			Help:      "Stored posts by status",
		},
		[]string{"status"},
	)

	m.HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	m.HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	m.registry.MustRegister(
		m.PublishTotal,
		m.PublishDuration,
		m.Transitions,
		m.Posts,
		m.HTTPRequests,
		m.HTTPDuration,
		prometheus.NewGoCollector(),
	)

	return m
}

// RecordPublish counts one publish attempt for platform.
func (m *MonitoringService) RecordPublish(platform models.PlatformType, success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.PublishTotal.WithLabelValues(string(platform), result).Inc()
	m.PublishDuration.WithLabelValues(string(platform)).Observe(duration.Seconds())
}

func (m *MonitoringService) RecordTransition(status models.PostStatus) {
	m.Transitions.WithLabelValues(string(status)).Inc()
}

// UpdatePostStats refreshes the posts gauge from the store. Statuses with no
// posts are reported as zero.
func (m *MonitoringService) UpdatePostStats(ctx context.Context, posts store.PostStore) error {
	counts, err := posts.CountByStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to count posts: %w", err)
	}
	for _, status := range models.AllPostStatuses() {
		m.Posts.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
	return nil
}

// Middleware collects request counts and latency per route.
func (m *MonitoringService) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		method := c.Request.Method
		m.HTTPRequests.WithLabelValues(method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *MonitoringService) Handler() gin.HandlerFunc {
	handler := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

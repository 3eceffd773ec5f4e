package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pipeline stage labels
const (
	StageASR = "asr"
	StageLLM = "llm"
	StageTTS = "tts"
)

// Collector records pipeline and HTTP metrics on a private registry
type Collector struct {
	registry *prometheus.Registry

	stageDuration   *prometheus.HistogramVec
	stageFailures   *prometheus.CounterVec
	fallbackReplies *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a collector whose metrics live under namespace
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.stageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"stage", "backend"},
	)

	c.stageFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Total number of failed pipeline stages",
		},
		[]string{"stage", "backend"},
	)

	c.fallbackReplies = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_replies_total",
			Help:      "Total number of replies replaced by the fallback apology",
		},
		[]string{"reason"},
	)

	c.requestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"route", "status"},
	)

	c.logger.Debug("Metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// ObserveStage records how long a stage ran and whether it failed
func (c *Collector) ObserveStage(stage, backend string, elapsed time.Duration, failed bool) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage, backend).Observe(elapsed.Seconds())
	if failed {
		c.stageFailures.WithLabelValues(stage, backend).Inc()
	}
}

// RecordFallback counts a reply replaced by the fallback apology
func (c *Collector) RecordFallback(reason string) {
	if c == nil {
		return
	}
	c.fallbackReplies.WithLabelValues(reason).Inc()
}

// RecordRequest counts a served HTTP request
func (c *Collector) RecordRequest(route string, status int) {
	if c == nil {
		return
	}
	c.requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// Registry exposes the underlying registry, mainly for tests
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Package metrics exposes Prometheus instrumentation for discussions, gateway calls and HTTP traffic.
package metrics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/zhouzirui/agora/backend/internal/orchestration"
	"github.com/zhouzirui/agora/backend/internal/service/ai"
)

var (
	_ orchestration.RunObserver = (*Collector)(nil)
	_ ai.CallObserver           = (*Collector)(nil)
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 讨论指标
	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	runInvocations prometheus.Histogram
	turnsTotal     *prometheus.CounterVec
	decisionsTotal *prometheus.CounterVec
	fallbacksTotal *prometheus.CounterVec

	// 模型调用指标
	gatewayCallsTotal   *prometheus.CounterVec
	gatewayCallDuration *prometheus.HistogramVec

	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector registers every metric on reg, or on the default registry when reg is nil.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	c := &Collector{logger: logger.With(zap.String("component", "metrics"))}

	c.runsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discussion_runs_total",
			Help:      "Total number of discussion runs",
		},
		[]string{"termination", "status"},
	)

	c.runDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discussion_run_duration_seconds",
			Help:      "Discussion run duration in seconds",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"status"},
	)

	c.runInvocations = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discussion_invocations",
			Help:      "Participant turns taken per discussion",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		},
	)

	c.turnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "participant_turns_total",
			Help:      "Total number of participant turns",
		},
		[]string{"participant"},
	)

	c.decisionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manager_decisions_total",
			Help:      "Total number of turn manager decisions",
		},
		[]string{"kind", "fallback"},
	)

	c.fallbacksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manager_fallbacks_total",
			Help:      "Decisions that fell back to a deterministic choice",
		},
		[]string{"kind"},
	)

	c.gatewayCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_calls_total",
			Help:      "Total number of completion gateway calls",
		},
		[]string{"purpose", "status"},
	)

	c.gatewayCallDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_call_duration_seconds",
			Help:      "Completion gateway call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"purpose"},
	)

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	return c
}

// ObserveRun implements orchestration.RunObserver.
func (c *Collector) ObserveRun(terminationReason string, invocations int, elapsed time.Duration, err error) {
	status := statusOf(err)
	if terminationReason == "" {
		terminationReason = "none"
	}
	c.runsTotal.WithLabelValues(terminationReason, status).Inc()
	c.runDuration.WithLabelValues(status).Observe(elapsed.Seconds())
	c.runInvocations.Observe(float64(invocations))
}

// ObserveTurn implements orchestration.RunObserver.
func (c *Collector) ObserveTurn(participant string) {
	c.turnsTotal.WithLabelValues(participant).Inc()
}

// ObserveDecision implements orchestration.RunObserver.
func (c *Collector) ObserveDecision(kind string, fallback bool) {
	c.decisionsTotal.WithLabelValues(kind, strconv.FormatBool(fallback)).Inc()
	if fallback {
		c.fallbacksTotal.WithLabelValues(kind).Inc()
		c.logger.Debug("decision fell back", zap.String("kind", kind))
	}
}

// ObserveGatewayCall implements ai.CallObserver.
func (c *Collector) ObserveGatewayCall(purpose string, elapsed time.Duration, err error) {
	c.gatewayCallsTotal.WithLabelValues(purpose, statusOf(err)).Inc()
	c.gatewayCallDuration.WithLabelValues(purpose).Observe(elapsed.Seconds())
}

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, orchestration.ErrCanceled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// Package metrics provides Prometheus metrics for the agent: LLM requests,
// tool executions and classifier runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "nbagent"

// Manager owns the agent's Prometheus collectors.
type Manager struct {
	namespace string
	registry  *prometheus.Registry

	llmRequests        *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	toolCalls          *prometheus.CounterVec
	classifierRuns     *prometheus.CounterVec
	classifierAccuracy prometheus.Gauge
	classifierSamples  *prometheus.GaugeVec
}

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace overrides the metric namespace.
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

// WithRegistry registers collectors on r instead of a fresh registry.
func WithRegistry(r *prometheus.Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

var defaultManager = NewManager()

// Default returns the process-wide manager.
func Default() *Manager {
	return defaultManager
}

// NewManager creates a manager with its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: defaultNamespace,
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.llmRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "llm",
		Name:      "requests_total",
		Help:      "LLM generate requests by provider and status",
	}, []string{"provider", "status"})

	m.llmRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "llm",
		Name:      "request_duration_seconds",
		Help:      "LLM generate latency in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"provider"})

	m.toolCalls = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "tools",
		Name:      "calls_total",
		Help:      "Tool executions by tool name and status",
	}, []string{"tool", "status"})

	m.classifierRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "classifier",
		Name:      "runs_total",
		Help:      "Classifier pipeline runs by status",
	}, []string{"status"})

	m.classifierAccuracy = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "classifier",
		Name:      "last_accuracy",
		Help:      "Test accuracy of the most recent successful classifier run",
	})

	m.classifierSamples = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "classifier",
		Name:      "last_samples",
		Help:      "Sample counts of the most recent classifier run by split",
	}, []string{"split"})
}

// Registry exposes the underlying registry (used by tests and the HTTP handler).
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler serving the manager's metrics.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordLLMRequest records one provider call.
func (m *Manager) RecordLLMRequest(provider string, err error, elapsed time.Duration) {
	m.llmRequests.WithLabelValues(provider, statusOf(err)).Inc()
	m.llmRequestDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// RecordToolCall records one tool execution.
func (m *Manager) RecordToolCall(tool string, failed bool) {
	status := "ok"
	if failed {
		status = "error"
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
}

// RecordClassifierRun records a pipeline run; accuracy and sample gauges only move on success.
func (m *Manager) RecordClassifierRun(err error, accuracy float64, train, test int) {
	m.classifierRuns.WithLabelValues(statusOf(err)).Inc()
	if err != nil {
		return
	}
	m.classifierAccuracy.Set(accuracy)
	m.classifierSamples.WithLabelValues("train").Set(float64(train))
	m.classifierSamples.WithLabelValues("test").Set(float64(test))
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline stages.
const (
	StageEmbed    = "embed"
	StageRetrieve = "retrieve"
	StageGenerate = "generate"
)

// Answer modes recorded per request.
const (
	ModeGrounded             = "grounded"
	ModeFallbackUnconfigured = "fallback_unconfigured"
	ModeFallbackError        = "fallback_error"
	ModeEmptyQuestion        = "empty_question"
)

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Namespace prefixes every metric name
	Namespace string

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultMetricsConfig returns default Prometheus configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:      "scifit",
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}
}

// Metrics collects pipeline and HTTP metrics. All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	stageLatency *prometheus.HistogramVec
	stageErrors  *prometheus.CounterVec
	answers      *prometheus.CounterVec
	passages     prometheus.Histogram
	chatTokens   *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	ingestedChunks *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics(cfg MetricsConfig) *Metrics {
	defaults := DefaultMetricsConfig()
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = defaults.LatencyBuckets
	}
	if cfg.Namespace == "" {
		cfg.Namespace = defaults.Namespace
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{registry: registry}

	m.stageLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "rag",
			Name:      "stage_latency_seconds",
			Help:      "Latency of each pipeline stage in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"stage"},
	)

	m.stageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "rag",
			Name:      "stage_errors_total",
			Help:      "Total number of pipeline stage failures",
		},
		[]string{"stage", "error_type"},
	)

	m.answers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "rag",
			Name:      "answers_total",
			Help:      "Total number of answers by generation mode",
		},
		[]string{"mode"},
	)

	m.passages = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "rag",
			Name:      "retrieved_passages",
			Help:      "Number of passages returned by retrieval",
			Buckets:   []float64{0, 1, 2, 3, 5, 7, 10},
		},
	)

	m.chatTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "rag",
			Name:      "chat_tokens_total",
			Help:      "Total chat-completion tokens consumed",
		},
		[]string{"model", "token_type"},
	)

	m.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"method", "route"},
	)

	m.ingestedChunks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Total number of chunks processed by ingestion",
		},
		[]string{"status"},
	)

	registry.MustRegister(
		m.stageLatency,
		m.stageErrors,
		m.answers,
		m.passages,
		m.chatTokens,
		m.httpRequests,
		m.httpLatency,
		m.ingestedChunks,
	)

	return m
}

// ObserveStage records the latency of a stage and, when errorType is set, a failure.
func (m *Metrics) ObserveStage(stage string, latency time.Duration, errorType string) {
	if m == nil {
		return
	}
	m.stageLatency.WithLabelValues(stage).Observe(latency.Seconds())
	if errorType != "" {
		m.stageErrors.WithLabelValues(stage, errorType).Inc()
	}
}

// RecordAnswer counts an answer by generation mode.
func (m *Metrics) RecordAnswer(mode string) {
	if m == nil {
		return
	}
	m.answers.WithLabelValues(mode).Inc()
}

// RecordPassages records the retrieval result size.
func (m *Metrics) RecordPassages(count int) {
	if m == nil {
		return
	}
	m.passages.Observe(float64(count))
}

// RecordChatTokens records chat-completion token usage.
func (m *Metrics) RecordChatTokens(model string, prompt, completion int) {
	if m == nil {
		return
	}
	m.chatTokens.WithLabelValues(model, "prompt").Add(float64(prompt))
	m.chatTokens.WithLabelValues(model, "completion").Add(float64(completion))
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, latency time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(latency.Seconds())
}

// RecordIngestedChunks counts chunks by outcome ("uploaded", "skipped", "failed").
func (m *Metrics) RecordIngestedChunks(status string, count int) {
	if m == nil {
		return
	}
	m.ingestedChunks.WithLabelValues(status).Add(float64(count))
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

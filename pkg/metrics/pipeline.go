// Package metrics exposes Prometheus metrics for the ask pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes.
const (
	OutcomeSuccess         = "success"
	OutcomeFallbackSuccess = "fallback_success"
	OutcomeFailed          = "failed"
)

// PipelineMetrics records pipeline outcomes and latencies. A nil
// *PipelineMetrics is valid and records nothing.
type PipelineMetrics struct {
	requestsTotal      *prometheus.CounterVec
	fallbackTotal      *prometheus.CounterVec
	unsafeQueriesTotal *prometheus.CounterVec
	modelLatencyMs     prometheus.Histogram
	queryLatencyMs     prometheus.Histogram
	snapshotAgeSeconds prometheus.Gauge
}

// NewPipelineMetrics creates the metrics and registers them with reg.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "askdb_requests_total",
				Help: "Total number of answered questions by outcome.",
			},
			[]string{"outcome"},
		),
		fallbackTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "askdb_fallback_total",
				Help: "Total number of fallback queries by the error that triggered them.",
			},
			[]string{"reason"},
		),
		unsafeQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "askdb_unsafe_queries_total",
				Help: "Total number of generated queries refused, by rule.",
			},
			[]string{"rule"},
		),
		modelLatencyMs: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "askdb_model_latency_ms",
				Help:    "Language model call latency in milliseconds.",
				Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 15000, 30000},
			},
		),
		queryLatencyMs: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "askdb_query_latency_ms",
				Help:    "Target database query latency in milliseconds.",
				Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
			},
		),
		snapshotAgeSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "askdb_schema_snapshot_age_seconds",
				Help: "Age of the schema snapshot used by the latest request.",
			},
		),
	}

	reg.MustRegister(
		m.requestsTotal,
		m.fallbackTotal,
		m.unsafeQueriesTotal,
		m.modelLatencyMs,
		m.queryLatencyMs,
		m.snapshotAgeSeconds,
	)
	return m
}

func (m *PipelineMetrics) ObserveRequest(outcome string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(outcome).Inc()
}

func (m *PipelineMetrics) ObserveFallback(reason string) {
	if m == nil {
		return
	}
	m.fallbackTotal.WithLabelValues(reason).Inc()
}

func (m *PipelineMetrics) ObserveUnsafeQuery(rule string) {
	if m == nil {
		return
	}
	m.unsafeQueriesTotal.WithLabelValues(rule).Inc()
}

func (m *PipelineMetrics) ObserveModelLatency(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.modelLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func (m *PipelineMetrics) ObserveQueryLatency(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.queryLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func (m *PipelineMetrics) SetSnapshotAge(age time.Duration) {
	if m == nil {
		return
	}
	if age < 0 {
		age = 0
	}
	m.snapshotAgeSeconds.Set(age.Seconds())
}

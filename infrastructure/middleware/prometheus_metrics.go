// Package middleware provides cross-cutting concerns for the classification pipeline.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-radqc/internal/ports"
)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It provides real-time monitoring of stage execution,
// data quality findings, and clustering quality for the pipeline.
type PrometheusMetrics struct {
	stageExecutions   *prometheus.CounterVec
	integrityWarnings *prometheus.CounterVec
	rowsProcessed     *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	valueDistribution *prometheus.HistogramVec
	systemGauges      *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance and
// registers all metrics with the provided registerer.
// A nil registerer falls back to the default Prometheus registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		stageExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "radqc_stage_executions_total",
				Help: "Total number of stage executions by outcome.",
			},
			[]string{"pipeline_id", "stage", "status"},
		),
		integrityWarnings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "radqc_integrity_warnings_total",
				Help: "Total number of data integrity violations by kind.",
			},
			[]string{"pipeline_id", "kind"},
		),
		rowsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "radqc_rows_processed_total",
				Help: "Total number of rows flowing in and out of stages.",
			},
			[]string{"stage", "direction"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "radqc_stage_duration_seconds",
				Help:    "Execution time of pipeline stages.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		valueDistribution: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "radqc_value_distribution",
				Help:    "Distributions of pipeline values such as group sizes.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"metric"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "radqc_system_state",
				Help: "Current system state values such as the last run's clustering quality.",
			},
			[]string{"metric", "pipeline_id"},
		),
	}
}

// RecordLatency implements the MetricsCollector interface by recording
// stage execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	stage, ok := labels["stage"]
	if !ok {
		stage = operation
	}
	pm.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters, routing well-known metric names to their
// dedicated counter families.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	pipelineID := labelOr(labels, "pipeline_id", "unknown")
	stage := labelOr(labels, "stage", "unknown")

	switch metric {
	case "stage_executions_total":
		status := labelOr(labels, "status", "success")
		pm.stageExecutions.WithLabelValues(pipelineID, stage, status).Add(value)
	case "integrity_warnings_total":
		kind := labelOr(labels, "kind", "unknown")
		pm.integrityWarnings.WithLabelValues(pipelineID, kind).Add(value)
	case "rows_processed_total":
		direction := labelOr(labels, "direction", "out")
		pm.rowsProcessed.WithLabelValues(stage, direction).Add(value)
	default:
		pm.stageExecutions.WithLabelValues(pipelineID, metric, "success").Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values, keyed by metric name and pipeline.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	pipelineID := labelOr(labels, "pipeline_id", "unknown")
	pm.systemGauges.WithLabelValues(metric, pipelineID).Set(value)
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in the general distribution histogram.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	pm.valueDistribution.WithLabelValues(metric).Observe(value)
}

// labelOr returns the label value for key, or fallback when absent.
func labelOr(labels map[string]string, key, fallback string) string {
	if v, ok := labels[key]; ok {
		return v
	}
	return fallback
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

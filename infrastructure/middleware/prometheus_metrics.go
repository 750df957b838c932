package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-funcreg/internal/ports"
)

// Metric names understood by PrometheusMetrics. Names outside this set are
// routed to the generic operation counter or state gauge.
const (
	MetricApplyTotal      = "function_apply_total"
	MetricRegisteredTypes = "function_registered_types"
	MetricCatalogSize     = "function_catalog_instances"
)

// PrometheusMetrics implements the MetricsCollector interface using Prometheus.
// It exposes invocation latency, invocation outcomes and registry state.
type PrometheusMetrics struct {
	applyLatency     *prometheus.HistogramVec
	applyCounter     *prometheus.CounterVec
	operationCounter *prometheus.CounterVec
	stateGauges      *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance whose metrics are
// registered with reg. A nil reg uses the default Prometheus registerer.
// Registering twice with the same registerer panics, so tests pass a fresh
// prometheus.NewRegistry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		applyLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "function_apply_duration_seconds",
				Help:    "Duration of function invocations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "type"},
		),
		applyCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricApplyTotal,
				Help: "Total number of function invocations by outcome.",
			},
			[]string{"type", "status"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "function_operations_total",
				Help: "Total number of other registry and host operations.",
			},
			[]string{"operation", "type"},
		),
		stateGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "function_host_state",
				Help: "Current registry and catalog state values.",
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency records the duration of an operation for the function type
// named by the "type" label.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	pm.applyLatency.WithLabelValues(operation, typeLabel(labels)).Observe(duration.Seconds())
}

// RecordCounter increments a Prometheus counter.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case MetricApplyTotal:
		status := labels["status"]
		if status == "" {
			status = "success"
		}
		pm.applyCounter.WithLabelValues(typeLabel(labels), status).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric, typeLabel(labels)).Add(value)
	}
}

// RecordGauge sets a Prometheus gauge value.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, _ map[string]string,
) {
	pm.stateGauges.WithLabelValues(metric).Set(value)
}

func typeLabel(labels map[string]string) string {
	if t := labels["type"]; t != "" {
		return t
	}
	return "unknown"
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

package store

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector defines the interface for collecting store metrics
type MetricsCollector interface {
	RecordOperation(op Op, table string, err error, duration time.Duration)
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordOperation(Op, string, error, time.Duration) {}

// PrometheusMetrics implements MetricsCollector using Prometheus
type PrometheusMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewPrometheusMetrics registers the store collectors on reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auction",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Store operations by op, table and result.",
		}, []string{"op", "table", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "auction",
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Store operation latency.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 5},
		}, []string{"op", "table"}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.duration)
	}
	return m
}

func (m *PrometheusMetrics) RecordOperation(op Op, table string, err error, duration time.Duration) {
	m.operations.WithLabelValues(string(op), table, resultLabel(err)).Inc()
	m.duration.WithLabelValues(string(op), table).Observe(duration.Seconds())
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsTransient(err):
		return "transient"
	default:
		return "failure"
	}
}

// Instrumented wraps a Store and reports every call to a MetricsCollector.
// Placed beneath Retrying it counts individual attempts.
type Instrumented struct {
	inner   Store
	metrics MetricsCollector
}

func NewInstrumented(inner Store, metrics MetricsCollector) *Instrumented {
	if metrics == nil {
		metrics = NoOpMetricsCollector{}
	}
	return &Instrumented{inner: inner, metrics: metrics}
}

func (s *Instrumented) ReadTable(ctx context.Context, table string) ([]Record, error) {
	start := time.Now()
	rows, err := s.inner.ReadTable(ctx, table)
	s.metrics.RecordOperation(OpReadTable, table, err, time.Since(start))
	return rows, err
}

func (s *Instrumented) UpsertKV(ctx context.Context, table, key, value string) error {
	start := time.Now()
	err := s.inner.UpsertKV(ctx, table, key, value)
	s.metrics.RecordOperation(OpUpsertKV, table, err, time.Since(start))
	return err
}

func (s *Instrumented) UpdateRowByID(ctx context.Context, table, idColumn, idValue string, fields map[string]string) error {
	start := time.Now()
	err := s.inner.UpdateRowByID(ctx, table, idColumn, idValue, fields)
	s.metrics.RecordOperation(OpUpdateRowByID, table, err, time.Since(start))
	return err
}

func (s *Instrumented) AppendRow(ctx context.Context, table string, fields map[string]string) error {
	start := time.Now()
	err := s.inner.AppendRow(ctx, table, fields)
	s.metrics.RecordOperation(OpAppendRow, table, err, time.Since(start))
	return err
}

func (s *Instrumented) EnsureSchema(ctx context.Context, schema Schema) error {
	if init, ok := s.inner.(Initializer); ok {
		return init.EnsureSchema(ctx, schema)
	}
	return nil
}

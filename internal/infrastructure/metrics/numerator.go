// Package metrics exposes Prometheus instruments for report numbering.
package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"

	"inspecta/internal/core/apperror"
)

const (
	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonCanceled             = "canceled"
	ReasonUniqueViolation      = "unique_violation"
	ReasonSerializationFailure = "serialization_failure"
	ReasonLockTimeout          = "db_lock_timeout"
	ReasonValidation           = "validation"
	ReasonUnknown              = "unknown"
)

// Config sets the constant labels attached to every series.
type Config struct {
	ServiceName string
	Environment string
}

// NumeratorMetrics captures allocation throughput, latency and collisions.
type NumeratorMetrics struct {
	allocated  *prometheus.CounterVec
	errors     *prometheus.CounterVec
	collisions *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

var (
	numeratorMetricsOnce sync.Once
	numeratorMetrics     *NumeratorMetrics
)

// Numerator returns the singleton numbering metrics registry.
func Numerator() *NumeratorMetrics {
	return NumeratorWithConfig(Config{})
}

// NumeratorWithConfig returns the singleton numbering metrics registry using config labels.
func NumeratorWithConfig(cfg Config) *NumeratorMetrics {
	numeratorMetricsOnce.Do(func() {
		numeratorMetrics = newNumeratorMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return numeratorMetrics
}

// ResetNumeratorMetricsForTest resets the singleton for tests.
func ResetNumeratorMetricsForTest() {
	numeratorMetricsOnce = sync.Once{}
	numeratorMetrics = nil
}

func newNumeratorMetrics(registerer prometheus.Registerer, cfg Config) *NumeratorMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "inspecta"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &NumeratorMetrics{
		allocated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "inspecta_numbers_allocated_total",
			Help:        "Report numbers issued by prefix and strategy.",
			ConstLabels: constLabels,
		}, []string{"prefix", "strategy"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "inspecta_number_allocation_errors_total",
			Help:        "Failed allocations by strategy and reason.",
			ConstLabels: constLabels,
		}, []string{"strategy", "reason"}),
		collisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "inspecta_number_collisions_total",
			Help:        "Allocated report numbers rejected by the unique index.",
			ConstLabels: constLabels,
		}, []string{"prefix"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "inspecta_number_allocation_duration_seconds",
			Help:        "Time spent issuing one report number.",
			Buckets:     []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			ConstLabels: constLabels,
		}, []string{"strategy"}),
	}

	m.allocated = register(registerer, m.allocated)
	m.errors = register(registerer, m.errors)
	m.collisions = register(registerer, m.collisions)
	m.duration = register(registerer, m.duration)
	return m
}

// register returns the collector already registered under the same
// descriptor, if any, so the singleton survives ResetNumeratorMetricsForTest.
func register[T prometheus.Collector](registerer prometheus.Registerer, c T) T {
	if err := registerer.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveAllocation records one allocation attempt.
func (m *NumeratorMetrics) ObserveAllocation(prefix, strategy string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	if err != nil {
		m.errors.WithLabelValues(strategy, ClassifyReason(err)).Inc()
		return
	}
	m.allocated.WithLabelValues(prefix, strategy).Inc()
}

// NumberCollision records an allocated number rejected on insert.
func (m *NumeratorMetrics) NumberCollision(prefix string) {
	if m == nil {
		return
	}
	m.collisions.WithLabelValues(prefix).Inc()
}

// ClassifyReason maps an allocation error to a low-cardinality label.
func ClassifyReason(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonDeadlineExceeded
	}
	if errors.Is(err, context.Canceled) {
		return ReasonCanceled
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ReasonUniqueViolation
		case "40001":
			return ReasonSerializationFailure
		case "55P03":
			return ReasonLockTimeout
		}
	}

	if apperror.IsDuplicate(err) || apperror.IsCode(err, apperror.CodeNumberCollision) {
		return ReasonUniqueViolation
	}
	if apperror.IsCode(err, apperror.CodeValidation) {
		return ReasonValidation
	}
	return ReasonUnknown
}

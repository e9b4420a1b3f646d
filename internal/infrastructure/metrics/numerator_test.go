package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"inspecta/internal/core/apperror"
)

func TestClassifyReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: ReasonDeadlineExceeded},
		{name: "canceled", err: fmt.Errorf("wrap: %w", context.Canceled), want: ReasonCanceled},
		{name: "unique_violation", err: &pgconn.PgError{Code: "23505"}, want: ReasonUniqueViolation},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: ReasonSerializationFailure},
		{name: "lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: ReasonLockTimeout},
		{name: "duplicate", err: apperror.NewDuplicate("report", "report_no", "NDT-2025-0001"), want: ReasonUniqueViolation},
		{name: "validation", err: apperror.NewValidation("bad prefix"), want: ReasonValidation},
		{name: "unknown", err: errors.New("boom"), want: ReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyReason(tc.err))
		})
	}
}

func TestObserveAllocation(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newNumeratorMetrics(registry, Config{ServiceName: "inspecta", Environment: "test"})

	m.ObserveAllocation("NDT", "strict", time.Millisecond, nil)
	m.ObserveAllocation("NDT", "strict", time.Millisecond, nil)
	m.ObserveAllocation("NDT", "strict", time.Millisecond, &pgconn.PgError{Code: "40001"})

	assert.Equal(t, float64(2), testutil.ToFloat64(m.allocated.WithLabelValues("NDT", "strict")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.errors.WithLabelValues("strict", ReasonSerializationFailure)))
}

func TestNumberCollision(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newNumeratorMetrics(registry, Config{})

	m.NumberCollision("PT")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.collisions.WithLabelValues("PT")))
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *NumeratorMetrics
	assert.NotPanics(t, func() {
		m.ObserveAllocation("NDT", "scan", time.Second, nil)
		m.NumberCollision("NDT")
	})
}

func TestNewNumeratorMetrics_ReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	cfg := Config{ServiceName: "inspecta", Environment: "test"}

	first := newNumeratorMetrics(registry, cfg)
	first.NumberCollision("WLD")
	second := newNumeratorMetrics(registry, cfg)

	assert.Same(t, first.collisions, second.collisions)
	assert.Equal(t, float64(1), testutil.ToFloat64(second.collisions.WithLabelValues("WLD")))
}

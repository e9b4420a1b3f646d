// Package numerator implements report auto-numbering on top of a Counter backend.
// This is the infrastructure layer - it implements core/numerator.Generator interface.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	corenumerator "inspecta/internal/core/numerator"
	"inspecta/internal/infrastructure/metrics"
	"inspecta/pkg/logger"
)

var tracer = otel.Tracer("inspecta/numerator")

type cachedRange struct {
	current int64
	max     int64
}

// Service provides report numbering over a Counter.
type Service struct {
	counter  Counter
	source   corenumerator.IdentifierSource
	metrics  *metrics.NumeratorMetrics
	recorder corenumerator.ChangeRecorder

	// cacheMu protects ranges map
	cacheMu sync.Mutex
	// ranges stores active ranges for each key
	ranges map[corenumerator.Key]*cachedRange
}

// Ensure compile-time interface compliance.
var (
	_ corenumerator.Generator = (*Service)(nil)
	_ corenumerator.Syncer    = (*Service)(nil)
)

// Option configures Service.
type Option func(*Service)

// WithSource sets the identifier source used by Scan strategy and Sync.
func WithSource(src corenumerator.IdentifierSource) Option {
	return func(s *Service) { s.source = src }
}

// WithMetrics enables allocation metrics.
func WithMetrics(m *metrics.NumeratorMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithChangeRecorder journals SetNextNumber and Sync adjustments.
func WithChangeRecorder(r corenumerator.ChangeRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// New creates a new numerator service.
func New(counter Counter, opts ...Option) *Service {
	s := &Service{
		counter: counter,
		ranges:  make(map[corenumerator.Key]*cachedRange),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetNextNumber generates the next report number.
// Pattern: PREFIX-YEAR-NNNN (e.g., NDT-2025-0001)
func (s *Service) GetNextNumber(ctx context.Context, cfg corenumerator.Config, opts *corenumerator.Options, period time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if opts == nil {
		opts = corenumerator.DefaultOptions()
	}

	key := cfg.Key(period.Year())
	ctx, span := tracer.Start(ctx, "numerator.next",
		trace.WithAttributes(
			attribute.String("numerator.prefix", key.Prefix),
			attribute.Int("numerator.year", key.Year),
			attribute.String("numerator.strategy", opts.Strategy.String()),
		))
	defer span.End()

	start := time.Now()
	var num int64
	var err error

	switch opts.Strategy {
	case corenumerator.StrategyScan:
		num, err = s.getNextScan(ctx, key)
	case corenumerator.StrategyCached:
		num, err = s.getNextCached(ctx, key, opts)
	case corenumerator.StrategyStrict:
		fallthrough
	default:
		num, err = s.getNextStrict(ctx, key)
	}

	s.metrics.ObserveAllocation(key.Prefix, opts.Strategy.String(), time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "allocation failed")
		return "", err
	}

	return cfg.Format(key.Year, num), nil
}

// getNextStrict issues one number per counter round trip.
func (s *Service) getNextStrict(ctx context.Context, key corenumerator.Key) (int64, error) {
	num, err := s.counter.Increment(ctx, key, 1)
	if err != nil {
		return 0, fmt.Errorf("strict next: %w", err)
	}
	return num, nil
}

// getNextScan computes max+1 over the persisted identifiers. Nothing is
// reserved, so concurrent callers may receive the same number.
func (s *Service) getNextScan(ctx context.Context, key corenumerator.Key) (int64, error) {
	if s.source == nil {
		return 0, fmt.Errorf("scan next: no identifier source configured")
	}
	existing, err := s.source.ListNumbers(ctx, key.Prefix, key.Year)
	if err != nil {
		return 0, fmt.Errorf("scan next: %w", err)
	}
	return corenumerator.MaxSequence(key.Prefix, key.Year, existing) + 1, nil
}

// getNextCached fetches next number from memory, refilling from the counter if needed.
func (s *Service) getNextCached(ctx context.Context, key corenumerator.Key, opts *corenumerator.Options) (int64, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	rng, exists := s.ranges[key]
	if !exists {
		rng = &cachedRange{}
		s.ranges[key] = rng
	}

	// allocate new range if needed
	if rng.current >= rng.max {
		size := opts.RangeSize
		if size <= 0 {
			size = corenumerator.DefaultRangeSize
		}

		newMax, err := s.counter.Increment(ctx, key, size)
		if err != nil {
			return 0, fmt.Errorf("reserve range: %w", err)
		}

		// The counter moved from newMax-size to newMax, so this process owns
		// (newMax-size, newMax].
		rng.current = newMax - size
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}

// SetNextNumber sets the last issued sequence (for migration purposes).
func (s *Service) SetNextNumber(ctx context.Context, cfg corenumerator.Config, period time.Time, value int64) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if value < 0 {
		return fmt.Errorf("set next number: negative value %d", value)
	}

	key := cfg.Key(period.Year())
	previous, err := s.previous(ctx, key)
	if err != nil {
		return fmt.Errorf("set next number: %w", err)
	}
	err = s.counter.Set(ctx, key, value)
	s.invalidate(key)
	if err != nil {
		return fmt.Errorf("set next number: %w", err)
	}

	logger.Info(ctx, "report counter set", "prefix", key.Prefix, "year", key.Year, "previous", previous, "value", value)
	s.record(ctx, corenumerator.CounterChange{Key: key, Action: corenumerator.ChangeSet, Previous: previous, Value: value})
	return nil
}

// Current returns the last issued sequence without consuming one.
func (s *Service) Current(ctx context.Context, cfg corenumerator.Config, period time.Time) (int64, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	return s.counter.Current(ctx, cfg.Key(period.Year()))
}

// Sync raises the counter to the highest persisted sequence, so switching
// from Scan to a counter strategy never reissues an existing number.
// It returns the counter value after the raise.
func (s *Service) Sync(ctx context.Context, cfg corenumerator.Config, period time.Time) (int64, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	if s.source == nil {
		return 0, fmt.Errorf("sync: no identifier source configured")
	}

	key := cfg.Key(period.Year())
	existing, err := s.source.ListNumbers(ctx, key.Prefix, key.Year)
	if err != nil {
		return 0, fmt.Errorf("sync: %w", err)
	}
	highest := corenumerator.MaxSequence(key.Prefix, key.Year, existing)

	previous, err := s.previous(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("sync: %w", err)
	}
	val, err := s.counter.Raise(ctx, key, highest)
	s.invalidate(key)
	if err != nil {
		return 0, fmt.Errorf("sync: %w", err)
	}

	logger.Info(ctx, "report counter synced",
		"prefix", key.Prefix,
		"year", key.Year,
		"highest_persisted", highest,
		"counter", val)
	if val != previous {
		s.record(ctx, corenumerator.CounterChange{Key: key, Action: corenumerator.ChangeSync, Previous: previous, Value: val})
	}
	return val, nil
}

// previous reads the counter before an adjustment, only when it is journaled.
func (s *Service) previous(ctx context.Context, key corenumerator.Key) (int64, error) {
	if s.recorder == nil {
		return 0, nil
	}
	return s.counter.Current(ctx, key)
}

// record journals an adjustment. The counter has already moved, so a failed
// write is logged rather than returned.
func (s *Service) record(ctx context.Context, change corenumerator.CounterChange) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordCounterChange(ctx, change); err != nil {
		logger.Error(ctx, "failed to journal counter change",
			"prefix", change.Key.Prefix,
			"year", change.Key.Year,
			"action", change.Action,
			"error", err)
	}
}

func (s *Service) invalidate(key corenumerator.Key) {
	s.cacheMu.Lock()
	delete(s.ranges, key)
	s.cacheMu.Unlock()
}

package numerator

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	corenumerator "inspecta/internal/core/numerator"
)

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	incrementSQL = `
		INSERT INTO sys_sequences (prefix, year, current_val)
		VALUES ($1, $2, $3)
		ON CONFLICT (prefix, year) DO UPDATE
			SET current_val = sys_sequences.current_val + EXCLUDED.current_val,
			    updated_at = NOW()
		RETURNING current_val`

	setSQL = `
		INSERT INTO sys_sequences (prefix, year, current_val)
		VALUES ($1, $2, $3)
		ON CONFLICT (prefix, year) DO UPDATE
			SET current_val = EXCLUDED.current_val,
			    updated_at = NOW()
		RETURNING current_val`

	raiseSQL = `
		INSERT INTO sys_sequences (prefix, year, current_val)
		VALUES ($1, $2, $3)
		ON CONFLICT (prefix, year) DO UPDATE
			SET current_val = GREATEST(sys_sequences.current_val, EXCLUDED.current_val),
			    updated_at = NOW()
		RETURNING current_val`

	currentSQL = `
		SELECT COALESCE(
			(SELECT current_val FROM sys_sequences WHERE prefix = $1 AND year = $2),
			0)`
)

// PostgresCounter keeps counters in sys_sequences. Every call is a single
// upsert, so the row lock taken by ON CONFLICT serialises concurrent writers.
type PostgresCounter struct {
	querier func(ctx context.Context) Querier
}

var _ Counter = (*PostgresCounter)(nil)

// NewPostgresCounter creates a counter bound to a fixed querier.
// Use for tools and tests.
func NewPostgresCounter(q Querier) *PostgresCounter {
	return &PostgresCounter{querier: func(context.Context) Querier { return q }}
}

// NewPostgresCounterFromContext creates a counter that resolves the querier per call,
// so an increment joins the caller's transaction when there is one.
func NewPostgresCounterFromContext(fn func(ctx context.Context) Querier) *PostgresCounter {
	return &PostgresCounter{querier: fn}
}

// Increment implements Counter.
func (c *PostgresCounter) Increment(ctx context.Context, key corenumerator.Key, delta int64) (int64, error) {
	var val int64
	if err := c.querier(ctx).QueryRow(ctx, incrementSQL, key.Prefix, key.Year, delta).Scan(&val); err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	return val, nil
}

// Set implements Counter.
func (c *PostgresCounter) Set(ctx context.Context, key corenumerator.Key, value int64) error {
	var val int64
	if err := c.querier(ctx).QueryRow(ctx, setSQL, key.Prefix, key.Year, value).Scan(&val); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Raise implements Counter.
func (c *PostgresCounter) Raise(ctx context.Context, key corenumerator.Key, floor int64) (int64, error) {
	var val int64
	if err := c.querier(ctx).QueryRow(ctx, raiseSQL, key.Prefix, key.Year, floor).Scan(&val); err != nil {
		return 0, fmt.Errorf("raise %s: %w", key, err)
	}
	return val, nil
}

// Current implements Counter.
func (c *PostgresCounter) Current(ctx context.Context, key corenumerator.Key) (int64, error) {
	var val int64
	if err := c.querier(ctx).QueryRow(ctx, currentSQL, key.Prefix, key.Year).Scan(&val); err != nil {
		return 0, fmt.Errorf("current %s: %w", key, err)
	}
	return val, nil
}

// Package numerator provides domain contracts for report auto-numbering.
// Implementations live in infrastructure layer.
package numerator

import (
	"context"
	"time"
)

// Generator generates sequential report numbers.
// This is the domain contract - implementations live in infrastructure layer.
type Generator interface {
	// GetNextNumber generates the next report number.
	// Pattern: PREFIX-YEAR-NNNN (e.g., NDT-2025-0001)
	//
	// Supports Strict, Cached and Scan strategies.
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)

	// SetNextNumber sets the last issued sequence (for migration purposes).
	// The following call in Strict strategy returns value+1.
	SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error
}

// Syncer is implemented by generators backed by a stored counter.
// Sync raises the counter of the period to the highest persisted sequence
// and returns the counter value.
type Syncer interface {
	Sync(ctx context.Context, cfg Config, period time.Time) (int64, error)
}

// IdentifierSource lists the identifiers already persisted for a namespace.
// Soft-deleted records are included so their numbers are never issued again.
type IdentifierSource interface {
	ListNumbers(ctx context.Context, prefix string, year int) ([]string, error)
}

// IdentifierSourceFunc adapts a function to IdentifierSource.
type IdentifierSourceFunc func(ctx context.Context, prefix string, year int) ([]string, error)

// ListNumbers implements IdentifierSource.
func (f IdentifierSourceFunc) ListNumbers(ctx context.Context, prefix string, year int) ([]string, error) {
	return f(ctx, prefix, year)
}

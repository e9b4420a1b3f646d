// Package numerator provides domain contracts for report auto-numbering.
package numerator

import (
	"strings"

	"inspecta/internal/core/apperror"
)

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict increments a stored counter for every number.
	// Numbers are unique across processes and never reused.
	StrategyStrict Strategy = iota

	// StrategyCached reserves ranges of numbers and hands them out from memory.
	// Much faster, but a restart leaves gaps.
	StrategyCached

	// StrategyScan reads the existing identifiers and issues max+1.
	// Two concurrent callers that scan before either persists get the same number;
	// the unique index on report_no is what catches it.
	StrategyScan
)

// String returns the strategy label used in logs and metrics.
func (s Strategy) String() string {
	switch s {
	case StrategyStrict:
		return "strict"
	case StrategyCached:
		return "cached"
	case StrategyScan:
		return "scan"
	default:
		return "unknown"
	}
}

// ParseStrategy converts a config value to Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return StrategyStrict, nil
	case "cached":
		return StrategyCached, nil
	case "scan":
		return StrategyScan, nil
	default:
		return StrategyStrict, apperror.NewValidation("unknown numbering strategy").WithDetail("strategy", s)
	}
}

// DefaultRangeSize is the number of values reserved per round trip in Cached strategy.
const DefaultRangeSize int64 = 50

// Options configuration for number generation.
type Options struct {
	// Strategy to use for number generation
	Strategy Strategy
	// RangeSize is the number of IDs to allocate at once in Cached strategy.
	// Default is 50.
	RangeSize int64
}

// DefaultOptions returns standard options (Strict).
func DefaultOptions() *Options {
	return &Options{
		Strategy: StrategyStrict,
	}
}

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g., "NDT", "PT")
	Prefix string

	// PadWidth is the minimum number width (default 4)
	PadWidth int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:   prefix,
		PadWidth: DefaultPadWidth,
	}
}

// Validate checks that the prefix can be rendered and parsed back.
func (c Config) Validate() error {
	if c.Prefix == "" {
		return apperror.NewValidation("numbering prefix is required")
	}
	if strings.Contains(c.Prefix, Separator) {
		return apperror.NewValidation("numbering prefix must not contain a dash").
			WithDetail("prefix", c.Prefix)
	}
	if c.PadWidth < 0 {
		return apperror.NewValidation("pad width must not be negative").
			WithDetail("pad_width", c.PadWidth)
	}
	return nil
}

// Width returns the effective pad width.
func (c Config) Width() int {
	if c.PadWidth <= 0 {
		return DefaultPadWidth
	}
	return c.PadWidth
}

// Key returns the counter namespace for the given year.
func (c Config) Key(year int) Key {
	return Key{Prefix: c.Prefix, Year: year}
}

// Format renders a sequence with this config's width.
func (c Config) Format(year int, seq int64) string {
	return FormatWidth(c.Prefix, year, seq, c.Width())
}

package numerator

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// Separator joins prefix, year and sequence.
	Separator = "-"

	// DefaultPadWidth is the minimum number of sequence digits.
	DefaultPadWidth = 4
)

// Key identifies one counter namespace.
type Key struct {
	Prefix string
	Year   int
}

// String returns "PREFIX/YEAR", used for cache keys and logs.
func (k Key) String() string {
	return fmt.Sprintf("%s/%d", k.Prefix, k.Year)
}

// Number is a parsed report identifier.
type Number struct {
	Prefix   string
	Year     int
	Sequence int64
}

// Key returns the namespace the number belongs to.
func (n Number) Key() Key {
	return Key{Prefix: n.Prefix, Year: n.Year}
}

// String renders the number with the default width.
func (n Number) String() string {
	return Format(n.Prefix, n.Year, n.Sequence)
}

// Format renders PREFIX-YEAR-NNNN. Wider sequences are never truncated.
func Format(prefix string, year int, seq int64) string {
	return FormatWidth(prefix, year, seq, DefaultPadWidth)
}

// FormatWidth renders PREFIX-YEAR-N with seq zero-padded to width.
func FormatWidth(prefix string, year int, seq int64, width int) string {
	return fmt.Sprintf("%s-%04d-%0*d", prefix, year, width, seq)
}

// Parse splits an identifier into its three segments.
// The last segment must be a non-empty run of decimal digits that fits int64.
func Parse(s string) (Number, bool) {
	parts := strings.Split(s, Separator)
	if len(parts) != 3 || parts[0] == "" {
		return Number{}, false
	}

	year, ok := parseDigits(parts[1])
	if !ok {
		return Number{}, false
	}
	seq, ok := parseDigits(parts[2])
	if !ok {
		return Number{}, false
	}

	return Number{Prefix: parts[0], Year: int(year), Sequence: seq}, true
}

// parseDigits accepts only [0-9]+; strconv alone would let a leading "+" through.
func parseDigits(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// MaxSequence returns the largest sequence among identifiers in (prefix, year).
// Entries that do not parse or belong to another namespace are ignored, and
// so is a sequence of math.MaxInt64, which has no successor.
func MaxSequence(prefix string, year int, existing []string) int64 {
	var max int64
	for _, s := range existing {
		n, ok := Parse(s)
		if !ok || n.Prefix != prefix || n.Year != year || n.Sequence == math.MaxInt64 {
			continue
		}
		if n.Sequence > max {
			max = n.Sequence
		}
	}
	return max
}

// Allocate returns the identifier after the highest one in existing.
// It reserves nothing: two callers with the same snapshot get the same answer.
func Allocate(prefix string, year int, existing []string) string {
	return Format(prefix, year, MaxSequence(prefix, year, existing)+1)
}

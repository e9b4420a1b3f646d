package numerator

import (
	"context"
)

// Counter adjustment actions.
const (
	ChangeSet  = "set"
	ChangeSync = "sync"
)

// CounterChange is a manual adjustment of a counter. Gaps and jumps in issued
// numbers are explained by these records.
type CounterChange struct {
	Key      Key
	Action   string
	Previous int64
	Value    int64
}

// ChangeRecorder persists counter adjustments.
type ChangeRecorder interface {
	RecordCounterChange(ctx context.Context, change CounterChange) error
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	appctx "inspecta/internal/core/context"
	"inspecta/internal/core/id"
	"inspecta/internal/core/numerator"
)

const counterAuditTable = "sys_counter_audit"

// CounterAuditEntry is one recorded counter adjustment.
type CounterAuditEntry struct {
	ID          id.ID     `db:"id"`
	Prefix      string    `db:"prefix"`
	Year        int       `db:"year"`
	Action      string    `db:"action"`
	PreviousVal int64     `db:"previous_val"`
	NewVal      int64     `db:"new_val"`
	UserID      string    `db:"user_id"`
	CreatedAt   time.Time `db:"created_at"`
}

// QuerierSource resolves the querier for a context (pool or active tx).
type QuerierSource interface {
	GetQuerier(ctx context.Context) Querier
}

// CounterAudit journals manual counter adjustments in sys_counter_audit.
type CounterAudit struct {
	db      QuerierSource
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

// Ensure compile-time interface compliance.
var _ numerator.ChangeRecorder = (*CounterAudit)(nil)

// NewCounterAudit creates a counter audit journal.
func NewCounterAudit(db QuerierSource) *CounterAudit {
	return &CounterAudit{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RecordCounterChange implements numerator.ChangeRecorder.
func (a *CounterAudit) RecordCounterChange(ctx context.Context, change numerator.CounterChange) error {
	query, args, err := a.builder.Insert(counterAuditTable).
		Columns("id", "prefix", "year", "action", "previous_val", "new_val", "user_id", "created_at").
		Values(id.New(), change.Key.Prefix, change.Key.Year, change.Action,
			change.Previous, change.Value, appctx.GetUserID(ctx), a.now()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}

	if _, err := a.db.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("record counter change: %w", err)
	}
	return nil
}

func (a *CounterAudit) historyQuery(prefix string, year int, limit int) squirrel.SelectBuilder {
	q := a.builder.
		Select("id", "prefix", "year", "action", "previous_val", "new_val", "user_id", "created_at").
		From(counterAuditTable).
		Where(squirrel.Eq{"prefix": prefix}).
		OrderBy("created_at DESC")
	if year > 0 {
		q = q.Where(squirrel.Eq{"year": year})
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return q
}

// History returns the most recent adjustments of a prefix, newest first.
// year 0 covers all years.
func (a *CounterAudit) History(ctx context.Context, prefix string, year int, limit int) ([]CounterAuditEntry, error) {
	query, args, err := a.historyQuery(prefix, year, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	var entries []CounterAuditEntry
	if err := pgxscan.Select(ctx, a.db.GetQuerier(ctx), &entries, query, args...); err != nil {
		return nil, fmt.Errorf("query counter history: %w", err)
	}
	return entries, nil
}

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "inspecta/internal/core/context"
	"inspecta/internal/core/numerator"
)

type execRecorder struct {
	sql  string
	args []any
	err  error
}

func (r *execRecorder) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql = sql
	r.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), r.err
}

func (r *execRecorder) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (r *execRecorder) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

type staticSource struct{ q Querier }

func (s staticSource) GetQuerier(context.Context) Querier { return s.q }

func TestCounterAudit_RecordCounterChange(t *testing.T) {
	rec := &execRecorder{}
	audit := NewCounterAudit(staticSource{q: rec})
	fixed := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	audit.now = func() time.Time { return fixed }

	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "ops-1"})
	err := audit.RecordCounterChange(ctx, numerator.CounterChange{
		Key:      numerator.Key{Prefix: "NDT", Year: 2025},
		Action:   numerator.ChangeSync,
		Previous: 3,
		Value:    17,
	})
	require.NoError(t, err)

	assert.Equal(t,
		"INSERT INTO sys_counter_audit (id,prefix,year,action,previous_val,new_val,user_id,created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)",
		rec.sql)
	require.Len(t, rec.args, 8)
	assert.Equal(t, []any{"NDT", 2025, "sync", int64(3), int64(17), "ops-1", fixed}, rec.args[1:])
}

func TestCounterAudit_RecordError(t *testing.T) {
	rec := &execRecorder{err: errors.New("relation does not exist")}
	audit := NewCounterAudit(staticSource{q: rec})

	err := audit.RecordCounterChange(context.Background(), numerator.CounterChange{
		Key: numerator.Key{Prefix: "PT", Year: 2025}, Action: numerator.ChangeSet,
	})

	assert.ErrorContains(t, err, "record counter change")
}

func TestCounterAudit_HistoryQuery(t *testing.T) {
	audit := NewCounterAudit(staticSource{})

	sql, args, err := audit.historyQuery("WLD", 2024, 20).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id, prefix, year, action, previous_val, new_val, user_id, created_at FROM sys_counter_audit WHERE prefix = $1 AND year = $2 ORDER BY created_at DESC LIMIT 20",
		sql)
	assert.Equal(t, []any{"WLD", 2024}, args)

	sql, args, err = audit.historyQuery("WLD", 0, 0).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, "year =")
	assert.NotContains(t, sql, "LIMIT")
	assert.Equal(t, []any{"WLD"}, args)
}

package report_repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inspecta/internal/core/apperror"
	"inspecta/internal/domain"
	"inspecta/internal/domain/reports"
	"inspecta/internal/infrastructure/storage/postgres"
)

// recordingQuerier captures Exec calls and returns canned results.
type recordingQuerier struct {
	sql     string
	args    []any
	execErr error
	rows    int64
}

func (q *recordingQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.sql = sql
	q.args = args
	if q.execErr != nil {
		return pgconn.CommandTag{}, q.execErr
	}
	if strings.HasPrefix(sql, "INSERT") {
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}
	return pgconn.NewCommandTag("UPDATE " + strconv.FormatInt(q.rows, 10)), nil
}

func (q *recordingQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (q *recordingQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

type fixedProvider struct {
	q postgres.Querier
}

func (p fixedProvider) GetQuerier(context.Context) postgres.Querier { return p.q }

func newTestRepo(t *testing.T, q postgres.Querier) *ReportRepo {
	codec, err := NewFormCodec(64)
	require.NoError(t, err)
	return NewReportRepo(fixedProvider{q: q}, reports.NDTSummary, codec)
}

func newTestReport() *reports.Report {
	r := reports.NewReport(reports.NDTSummary, "Harbour Cranes Ltd")
	r.ReportNo = "NDT-2025-0001"
	r.InspectionDate = time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	return r
}

// argFor returns the value bound to column in an INSERT built by squirrel SetMap.
// SetMap sorts columns, so the n-th column maps to the n-th placeholder.
func argFor(t *testing.T, sql string, args []any, column string) any {
	t.Helper()
	open := strings.Index(sql, "(")
	closeIdx := strings.Index(sql, ")")
	require.True(t, open >= 0 && closeIdx > open)
	cols := strings.Split(sql[open+1:closeIdx], ",")
	for i, c := range cols {
		if strings.TrimSpace(c) == column {
			return args[i]
		}
	}
	t.Fatalf("column %s not in %s", column, sql)
	return nil
}

func TestCreate_MapsUniqueViolationToDuplicate(t *testing.T) {
	q := &recordingQuerier{execErr: &pgconn.PgError{
		Code:           postgres.CodeUniqueViolation,
		ConstraintName: "rep_ndt_summary_report_no_key",
	}}
	repo := newTestRepo(t, q)

	err := repo.Create(context.Background(), newTestReport())

	require.Error(t, err)
	assert.True(t, apperror.IsDuplicate(err))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "NDT-2025-0001", appErr.Details["value"])
}

func TestCreate_OtherUniqueViolationIsNotDuplicateNumber(t *testing.T) {
	q := &recordingQuerier{execErr: &pgconn.PgError{
		Code:           postgres.CodeUniqueViolation,
		ConstraintName: "rep_ndt_summary_pkey",
	}}
	repo := newTestRepo(t, q)

	err := repo.Create(context.Background(), newTestReport())

	require.Error(t, err)
	assert.False(t, apperror.IsDuplicate(err))
}

func TestCreate_InsertsIntoFamilyTable(t *testing.T) {
	q := &recordingQuerier{}
	repo := newTestRepo(t, q)
	report := newTestReport()
	report.FormData = json.RawMessage(`{"welds":3}`)

	require.NoError(t, repo.Create(context.Background(), report))

	assert.True(t, strings.HasPrefix(q.sql, "INSERT INTO rep_ndt_summary ("))
	assert.Equal(t, "NDT-2025-0001", argFor(t, q.sql, q.args, "report_no"))
	assert.Equal(t, json.RawMessage(`{"welds":3}`), argFor(t, q.sql, q.args, "form_data"))
	assert.Nil(t, argFor(t, q.sql, q.args, "form_data_zstd"))
}

func TestCreate_CompressesLargeForm(t *testing.T) {
	q := &recordingQuerier{}
	repo := newTestRepo(t, q)
	report := newTestReport()
	report.FormData = json.RawMessage(`{"notes":"` + strings.Repeat("crack ", 100) + `"}`)

	require.NoError(t, repo.Create(context.Background(), report))

	assert.Nil(t, argFor(t, q.sql, q.args, "form_data"))
	packed, ok := argFor(t, q.sql, q.args, "form_data_zstd").([]byte)
	require.True(t, ok)
	assert.Less(t, len(packed), len(report.FormData))

	restored, err := repo.codec.Unpack(nil, packed)
	require.NoError(t, err)
	assert.Equal(t, []byte(report.FormData), []byte(restored))
	assert.NotEmpty(t, report.FormData, "caller's payload is left intact")
}

func TestUpdate_NeverWritesReportNo(t *testing.T) {
	q := &recordingQuerier{rows: 1}
	repo := newTestRepo(t, q)

	require.NoError(t, repo.Update(context.Background(), newTestReport()))

	set := q.sql[:strings.Index(q.sql, " WHERE ")]
	assert.True(t, strings.HasPrefix(q.sql, "UPDATE rep_ndt_summary SET "))
	assert.NotContains(t, set, "report_no")
	assert.NotContains(t, set, "family =")
	assert.NotContains(t, set, "created_at")
	assert.Contains(t, set, "version = version + 1")
	assert.Contains(t, q.sql, "WHERE id = $")
	assert.Contains(t, q.sql, "AND version = $")
}

func TestUpdate_StaleVersion(t *testing.T) {
	q := &recordingQuerier{rows: 0}
	repo := newTestRepo(t, q)

	err := repo.Update(context.Background(), newTestReport())

	assert.True(t, apperror.IsConcurrentModification(err))
}

func TestNumbersQuery(t *testing.T) {
	repo := newTestRepo(t, &recordingQuerier{})

	sql, args, err := repo.numbersQuery("NDT", 2025).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT report_no FROM rep_ndt_summary WHERE report_no LIKE $1", sql)
	assert.Equal(t, []any{"NDT-2025-%"}, args)
}

func TestNumbersQuery_EscapesWildcards(t *testing.T) {
	repo := newTestRepo(t, &recordingQuerier{})

	_, args, err := repo.numbersQuery("N_T%", 2025).ToSql()
	require.NoError(t, err)
	assert.Equal(t, []any{`N\_T\%-2025-%`}, args)
}

func TestFiltered(t *testing.T) {
	repo := newTestRepo(t, &recordingQuerier{})

	sql, args, err := repo.filtered(domain.ListFilter{Search: "crane", Status: "draft"}).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(sql,
		"FROM rep_ndt_summary WHERE deletion_mark = $1 AND status = $2 AND (report_no ILIKE $3 OR client_name ILIKE $4 OR location ILIKE $5)"), sql)
	assert.Equal(t, []any{false, "draft", "%crane%", "%crane%", "%crane%"}, args)
}

func TestFiltered_SearchMatchesWildcardsLiterally(t *testing.T) {
	repo := newTestRepo(t, &recordingQuerier{})

	_, args, err := repo.filtered(domain.ListFilter{Search: `50%_off\`}).ToSql()
	require.NoError(t, err)
	want := `%50\%\_off\\%`
	assert.Equal(t, []any{false, want, want, want}, args)
}

func TestFiltered_IncludeDeleted(t *testing.T) {
	repo := newTestRepo(t, &recordingQuerier{})

	sql, _, err := repo.filtered(domain.ListFilter{IncludeDeleted: true}).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, "deletion_mark =")
}

func TestParseOrderBy(t *testing.T) {
	repo := newTestRepo(t, &recordingQuerier{})

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: "created_at DESC"},
		{in: "report_no", want: "report_no ASC"},
		{in: "-inspection_date", want: "inspection_date DESC"},
		{in: "+client_name", want: "client_name ASC"},
		{in: "form_data", wantErr: true},
		{in: "id; DROP TABLE x", wantErr: true},
		{in: "-", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := repo.parseOrderBy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormCodec(t *testing.T) {
	codec, err := NewFormCodec(0)
	require.NoError(t, err)

	inline, compressed := codec.Pack(nil)
	assert.Nil(t, inline)
	assert.Nil(t, compressed)

	small := json.RawMessage(`{"a":1}`)
	inline, compressed = codec.Pack(small)
	assert.Equal(t, small, inline)
	assert.Nil(t, compressed)

	large := json.RawMessage(`"` + string(bytes.Repeat([]byte("x"), DefaultCompressThreshold)) + `"`)
	inline, compressed = codec.Pack(large)
	assert.Nil(t, inline)
	restored, err := codec.Unpack(nil, compressed.([]byte))
	require.NoError(t, err)
	assert.Equal(t, []byte(large), []byte(restored))

	_, err = codec.Unpack(nil, []byte("not zstd"))
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	codec, err := NewFormCodec(0)
	require.NoError(t, err)
	reg := NewRegistry(fixedProvider{q: &recordingQuerier{}}, codec)

	for _, f := range reports.Families() {
		repo, ok := reg.Repo(f.Prefix)
		require.True(t, ok, f.Prefix)
		assert.Equal(t, f.Table, repo.tableName)
	}

	_, err = reg.ListNumbers(context.Background(), "XYZ", 2025)
	assert.Error(t, err)
}

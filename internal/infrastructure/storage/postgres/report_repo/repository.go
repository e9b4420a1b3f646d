// Package report_repo provides PostgreSQL implementations for report repositories.
package report_repo

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"inspecta/internal/core/apperror"
	"inspecta/internal/core/id"
	"inspecta/internal/domain"
	"inspecta/internal/domain/reports"
	"inspecta/internal/infrastructure/storage/postgres"
)

// QuerierProvider yields the transaction in context or the pool.
// *postgres.TxManager satisfies it.
type QuerierProvider interface {
	GetQuerier(ctx context.Context) postgres.Querier
}

// ReportRepo stores the reports of one family in the family's table.
type ReportRepo struct {
	family     reports.Family
	tableName  string
	selectCols []string
	txm        QuerierProvider
	codec      *FormCodec
}

var _ reports.Repository = (*ReportRepo)(nil)

var reportColumns = postgres.ExtractDBColumns[reports.Report]()

// NewReportRepo creates a repository for one family.
func NewReportRepo(txm QuerierProvider, family reports.Family, codec *FormCodec) *ReportRepo {
	return &ReportRepo{
		family:     family,
		tableName:  family.Table,
		selectCols: reportColumns,
		txm:        txm,
		codec:      codec,
	}
}

// Builder returns a new squirrel builder.
func (r *ReportRepo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *ReportRepo) uniqueConstraint() string {
	return r.tableName + "_report_no_key"
}

// rowData maps the report onto its columns, packing the form payload.
func (r *ReportRepo) rowData(report *reports.Report) map[string]any {
	data := postgres.StructToMap(report)
	data["form_data"], data["form_data_zstd"] = r.codec.Pack(report.FormData)
	return data
}

func (r *ReportRepo) unpack(report *reports.Report) error {
	payload, err := r.codec.Unpack(report.FormData, report.FormDataZstd)
	if err != nil {
		return err
	}
	report.FormData = payload
	report.FormDataZstd = nil
	return nil
}

// Create inserts a new report. A taken report_no yields DUPLICATE_ENTRY.
func (r *ReportRepo) Create(ctx context.Context, report *reports.Report) error {
	data := r.rowData(report)

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	sql, args, err := r.Builder().
		Insert(r.tableName).
		SetMap(filteredData).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err, r.uniqueConstraint()) {
			return apperror.NewDuplicate("report", "report_no", report.ReportNo).WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", r.tableName, err)
	}
	return nil
}

// immutableColumns are never written by Update.
var immutableColumns = map[string]struct{}{
	"id":            {},
	"report_no":     {},
	"family":        {},
	"created_at":    {},
	"created_by":    {},
	"version":       {},
	"updated_at":    {},
	"deletion_mark": {},
}

// Update updates an existing report with optimistic locking.
func (r *ReportRepo) Update(ctx context.Context, report *reports.Report) error {
	data := r.rowData(report)

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if _, skip := immutableColumns[col]; skip {
			continue
		}
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	sql, args, err := r.Builder().
		Update(r.tableName).
		SetMap(filteredData).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": report.ID}).
		Where(squirrel.Eq{"version": report.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", r.tableName, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(r.tableName, report.ID)
	}
	return nil
}

// Delete soft-deletes a report.
func (r *ReportRepo) Delete(ctx context.Context, reportID id.ID) error {
	sql, args, err := r.Builder().
		Update(r.tableName).
		Set("deletion_mark", true).
		Set("updated_at", squirrel.Expr("NOW()")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": reportID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", r.tableName, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(r.tableName, reportID.String())
	}
	return nil
}

// baseSelect creates a SELECT builder.
func (r *ReportRepo) baseSelect() squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(r.tableName)
}

func (r *ReportRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*reports.Report, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	report := &reports.Report{}
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), report, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(r.tableName, key)
		}
		return nil, fmt.Errorf("get %s: %w", r.tableName, err)
	}
	if err := r.unpack(report); err != nil {
		return nil, err
	}
	return report, nil
}

// GetByID retrieves a report by ID.
func (r *ReportRepo) GetByID(ctx context.Context, reportID id.ID) (*reports.Report, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": reportID}), reportID.String())
}

// GetByNumber retrieves a report by report_no.
func (r *ReportRepo) GetByNumber(ctx context.Context, reportNo string) (*reports.Report, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"report_no": reportNo}), reportNo)
}

// GetForUpdate retrieves a report with row lock.
func (r *ReportRepo) GetForUpdate(ctx context.Context, reportID id.ID) (*reports.Report, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": reportID}).Suffix("FOR UPDATE"), reportID.String())
}

// filtered applies the list filter without ordering or paging.
func (r *ReportRepo) filtered(filter domain.ListFilter) squirrel.SelectBuilder {
	q := r.baseSelect()

	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}
	if len(filter.IDs) > 0 {
		q = q.Where(squirrel.Eq{"id": filter.IDs})
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.Search != "" {
		pattern := "%" + escapeLike(filter.Search) + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"report_no": pattern},
			squirrel.ILike{"client_name": pattern},
			squirrel.ILike{"location": pattern},
		})
	}
	return q
}

// List retrieves reports with standard filtering.
func (r *ReportRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*reports.Report], error) {
	result := domain.ListResult[*reports.Report]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.filtered(filter)

	countSQL, countArgs, err := r.Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy, err := r.parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list: %w", err)
	}
	for _, item := range result.Items {
		if err := r.unpack(item); err != nil {
			return result, err
		}
	}

	return result, nil
}

// numbersQuery selects every report_no in (prefix, year), deleted rows included.
func (r *ReportRepo) numbersQuery(prefix string, year int) squirrel.SelectBuilder {
	pattern := escapeLike(prefix) + "-" + strconv.Itoa(year) + "-%"
	return r.Builder().
		Select("report_no").
		From(r.tableName).
		Where(squirrel.Like{"report_no": pattern})
}

// ListNumbers implements numerator.IdentifierSource for this family's table.
func (r *ReportRepo) ListNumbers(ctx context.Context, prefix string, year int) ([]string, error) {
	sql, args, err := r.numbersQuery(prefix, year).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var numbers []string
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &numbers, sql, args...); err != nil {
		return nil, fmt.Errorf("list numbers %s: %w", r.tableName, err)
	}
	return numbers, nil
}

func (r *ReportRepo) parseOrderBy(orderBy string) (string, error) {
	allowed := make(map[string]struct{}, len(r.selectCols))
	for _, col := range r.selectCols {
		allowed[col] = struct{}{}
	}
	delete(allowed, "form_data")
	delete(allowed, "form_data_zstd")

	if strings.TrimSpace(orderBy) == "" {
		return "created_at DESC", nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else if strings.HasPrefix(orderBy, "+") {
		field = strings.TrimPrefix(orderBy, "+")
	}

	field = strings.TrimSpace(field)
	if field == "" {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
	}
	if _, ok := allowed[field]; !ok {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy).WithDetail("field", field)
	}

	return field + " " + direction, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

package reports

import (
	"context"

	"inspecta/internal/core/id"
	"inspecta/internal/domain"
)

// Repository persists reports of one family.
//
// Create must return an apperror with code DUPLICATE_ENTRY when report_no
// is already taken, including by a soft-deleted report.
type Repository interface {
	Create(ctx context.Context, report *Report) error
	Update(ctx context.Context, report *Report) error
	// Delete sets the deletion mark. The row and its number are kept.
	Delete(ctx context.Context, reportID id.ID) error

	GetByID(ctx context.Context, reportID id.ID) (*Report, error)
	GetByNumber(ctx context.Context, reportNo string) (*Report, error)
	GetForUpdate(ctx context.Context, reportID id.ID) (*Report, error)
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Report], error)

	// ListNumbers returns every report_no of the given year, deleted ones included.
	ListNumbers(ctx context.Context, prefix string, year int) ([]string, error)
}

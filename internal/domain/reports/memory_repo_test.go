package reports

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"inspecta/internal/core/apperror"
	"inspecta/internal/core/id"
	"inspecta/internal/domain"
)

// memoryRepo is an in-memory Repository with a unique index on report_no
// that, like the real table, keeps soft-deleted rows.
type memoryRepo struct {
	mu   sync.Mutex
	byID map[id.ID]Report
	byNo map[string]id.ID
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		byID: make(map[id.ID]Report),
		byNo: make(map[string]id.ID),
	}
}

var _ Repository = (*memoryRepo)(nil)

func (m *memoryRepo) Create(_ context.Context, report *Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byNo[report.ReportNo]; taken {
		return apperror.NewDuplicate("report", "report_no", report.ReportNo)
	}
	m.byID[report.ID] = *report
	m.byNo[report.ReportNo] = report.ID
	return nil
}

func (m *memoryRepo) Update(_ context.Context, report *Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[report.ID]
	if !ok || stored.Version != report.Version {
		return apperror.NewConcurrentModification("report", report.ID)
	}
	next := *report
	next.ReportNo = stored.ReportNo
	next.Version = stored.Version + 1
	m.byID[report.ID] = next
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, reportID id.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[reportID]
	if !ok {
		return apperror.NewNotFound("report", reportID.String())
	}
	stored.DeletionMark = true
	stored.Version++
	m.byID[reportID] = stored
	return nil
}

func (m *memoryRepo) GetByID(_ context.Context, reportID id.ID) (*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[reportID]
	if !ok {
		return nil, apperror.NewNotFound("rep_test", reportID.String())
	}
	return &stored, nil
}

func (m *memoryRepo) GetByNumber(ctx context.Context, reportNo string) (*Report, error) {
	m.mu.Lock()
	reportID, ok := m.byNo[reportNo]
	m.mu.Unlock()
	if !ok {
		return nil, apperror.NewNotFound("rep_test", reportNo)
	}
	return m.GetByID(ctx, reportID)
}

func (m *memoryRepo) GetForUpdate(ctx context.Context, reportID id.ID) (*Report, error) {
	return m.GetByID(ctx, reportID)
}

func (m *memoryRepo) List(_ context.Context, filter domain.ListFilter) (domain.ListResult[*Report], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := domain.ListResult[*Report]{Limit: filter.Limit, Offset: filter.Offset}
	for _, r := range m.byID {
		if r.DeletionMark && !filter.IncludeDeleted {
			continue
		}
		r := r
		result.Items = append(result.Items, &r)
	}
	sort.Slice(result.Items, func(i, j int) bool { return result.Items[i].ReportNo < result.Items[j].ReportNo })
	result.TotalCount = int64(len(result.Items))
	return result, nil
}

func (m *memoryRepo) ListNumbers(_ context.Context, prefix string, year int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	scope := prefix + "-" + strconv.Itoa(year) + "-"
	var out []string
	for no := range m.byNo {
		if strings.HasPrefix(no, scope) {
			out = append(out, no)
		}
	}
	return out, nil
}

// nopTxManager runs fn directly.
type nopTxManager struct{}

func (nopTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

package main

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inspecta/internal/core/apperror"
	"inspecta/internal/core/id"
	"inspecta/internal/core/numerator"
	"inspecta/internal/domain"
	"inspecta/internal/domain/reports"
	infranumerator "inspecta/internal/infrastructure/numerator"
)

// reportStore keeps reports in memory behind a unique report_no index.
type reportStore struct {
	mu   sync.Mutex
	byNo map[string]reports.Report
}

var _ reports.Repository = (*reportStore)(nil)

func newReportStore() *reportStore {
	return &reportStore{byNo: make(map[string]reports.Report)}
}

func (s *reportStore) Create(_ context.Context, report *reports.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byNo[report.ReportNo]; taken {
		return apperror.NewDuplicate("report", "report_no", report.ReportNo)
	}
	s.byNo[report.ReportNo] = *report
	return nil
}

func (s *reportStore) Update(context.Context, *reports.Report) error { return nil }
func (s *reportStore) Delete(context.Context, id.ID) error           { return nil }

func (s *reportStore) GetByID(_ context.Context, reportID id.ID) (*reports.Report, error) {
	return nil, apperror.NewNotFound("report", reportID.String())
}

func (s *reportStore) GetByNumber(_ context.Context, reportNo string) (*reports.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byNo[reportNo]
	if !ok {
		return nil, apperror.NewNotFound("report", reportNo)
	}
	return &r, nil
}

func (s *reportStore) GetForUpdate(ctx context.Context, reportID id.ID) (*reports.Report, error) {
	return s.GetByID(ctx, reportID)
}

func (s *reportStore) List(context.Context, domain.ListFilter) (domain.ListResult[*reports.Report], error) {
	return domain.ListResult[*reports.Report]{}, nil
}

func (s *reportStore) ListNumbers(_ context.Context, prefix string, year int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scope := prefix + "-" + strconv.Itoa(year) + "-"
	var out []string
	for no := range s.byNo {
		if strings.HasPrefix(no, scope) {
			out = append(out, no)
		}
	}
	sort.Strings(out)
	return out, nil
}

type directTx struct{}

func (directTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type importFixture struct {
	store    *reportStore
	numbers  *infranumerator.Service
	importer *importer
}

func newImportFixture(strategy numerator.Strategy) *importFixture {
	store := newReportStore()
	numbers := infranumerator.New(infranumerator.NewMemoryCounter(), infranumerator.WithSource(store))
	svc := reports.NewService(reports.ServiceConfig{
		Family:    reports.NDTSummary,
		Repo:      store,
		Numerator: numbers,
		TxManager: directTx{},
		Options:   &numerator.Options{Strategy: strategy},
		Clock:     func() time.Time { return time.Date(2025, time.June, 2, 8, 0, 0, 0, time.UTC) },
	})
	return &importFixture{
		store:   store,
		numbers: numbers,
		importer: &importer{
			reports: svc,
			numbers: numbers,
			cfg:     numerator.DefaultConfig(reports.NDTSummary.Prefix),
			sync:    true,
		},
	}
}

func (f *importFixture) current(t *testing.T, year int) int64 {
	t.Helper()
	val, err := f.numbers.Current(context.Background(), f.importer.cfg, periodOf(year))
	require.NoError(t, err)
	return val
}

const mixedImport = `{"reportNo":"NDT-2025-0001","clientName":"Harbour Cranes"}
{"reportNo":"NDT-2025-0002","clientName":"Harbour Cranes"}
{"reportNo":"NDT-2025-0003","clientName":"Dockside"}
{"clientName":"Dockside"}
{"reportNo":"NDT-2019-0042","clientName":"Old Pier","inspectionDate":"2019-05-02"}
{"clientName":"Northern Rail"}
`

func TestImporter_MixedVerbatimAndAllocated(t *testing.T) {
	for _, strategy := range []numerator.Strategy{numerator.StrategyStrict, numerator.StrategyScan} {
		t.Run(strategy.String(), func(t *testing.T) {
			f := newImportFixture(strategy)
			ctx := context.Background()

			stats, err := f.importer.run(ctx, strings.NewReader(mixedImport))
			require.NoError(t, err)
			assert.Equal(t, importStats{created: 6, allocated: 2}, stats)

			numbers, err := f.store.ListNumbers(ctx, "NDT", 2025)
			require.NoError(t, err)
			assert.Equal(t, []string{
				"NDT-2025-0001", "NDT-2025-0002", "NDT-2025-0003",
				"NDT-2025-0004", "NDT-2025-0005",
			}, numbers)

			_, err = f.store.GetByNumber(ctx, "NDT-2019-0042")
			require.NoError(t, err)
		})
	}
}

func TestImporter_SyncsCountersPastVerbatimNumbers(t *testing.T) {
	f := newImportFixture(numerator.StrategyStrict)

	_, err := f.importer.run(context.Background(), strings.NewReader(mixedImport))
	require.NoError(t, err)

	assert.Equal(t, int64(5), f.current(t, 2025))
	assert.Equal(t, int64(42), f.current(t, 2019))
}

func TestImporter_WithoutSyncStillNumbersPastVerbatim(t *testing.T) {
	f := newImportFixture(numerator.StrategyStrict)
	f.importer.sync = false

	stats, err := f.importer.run(context.Background(), strings.NewReader(mixedImport))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.failed)

	_, err = f.store.GetByNumber(context.Background(), "NDT-2025-0004")
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.current(t, 2019))
}

func TestImporter_RejectedRecordsAreCounted(t *testing.T) {
	f := newImportFixture(numerator.StrategyStrict)
	input := `{"clientName":"Harbour Cranes"}
{"clientName":"Dockside","inspectionDate":"02/05/2019"}
{"reportNo":"NDT-2025-0001","clientName":"Duplicate"}
{"clientName":""}
{"clientName":"Northern Rail"}
`

	stats, err := f.importer.run(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, importStats{created: 2, allocated: 2, failed: 3}, stats)

	_, err = f.store.GetByNumber(context.Background(), "NDT-2025-0002")
	require.NoError(t, err)
}

func TestImporter_StopOnError(t *testing.T) {
	f := newImportFixture(numerator.StrategyStrict)
	f.importer.stopOnError = true
	input := `{"clientName":"Harbour Cranes"}
{"clientName":"Dockside","inspectionDate":"02/05/2019"}
{"clientName":"Northern Rail"}
`

	stats, err := f.importer.run(context.Background(), strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record 2")
	assert.Equal(t, importStats{created: 1, allocated: 1, failed: 1}, stats)
}

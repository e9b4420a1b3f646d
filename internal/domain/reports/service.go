package reports

import (
	"context"
	"fmt"
	"time"

	"inspecta/internal/core/apperror"
	appctx "inspecta/internal/core/context"
	"inspecta/internal/core/id"
	"inspecta/internal/core/numerator"
	"inspecta/internal/core/tx"
	"inspecta/internal/domain"
	"inspecta/pkg/logger"
)

const entityName = "report"

// CollisionObserver is told when an allocated number turned out to be taken.
type CollisionObserver interface {
	NumberCollision(prefix string)
}

type nopObserver struct{}

func (nopObserver) NumberCollision(string) {}

// ServiceConfig configures the report service of one family.
type ServiceConfig struct {
	Family    Family
	Repo      Repository
	Numerator numerator.Generator
	TxManager tx.Manager

	// Options selects the numbering strategy. Nil means Strict.
	Options *numerator.Options
	// PadWidth overrides the default sequence width of 4.
	PadWidth int

	Observer CollisionObserver
	// Clock supplies the allocation year. Defaults to time.Now.
	Clock func() time.Time
}

// Service provides business operations for reports of one family.
type Service struct {
	family    Family
	repo      Repository
	numerator numerator.Generator
	numCfg    numerator.Config
	numOpts   *numerator.Options
	txManager tx.Manager
	hooks     *domain.HookRegistry[*Report]
	observer  CollisionObserver
	now       func() time.Time
}

// NewService creates a new report service.
func NewService(cfg ServiceConfig) *Service {
	numCfg := numerator.DefaultConfig(cfg.Family.Prefix)
	if cfg.PadWidth > 0 {
		numCfg.PadWidth = cfg.PadWidth
	}
	opts := cfg.Options
	if opts == nil {
		opts = numerator.DefaultOptions()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Service{
		family:    cfg.Family,
		repo:      cfg.Repo,
		numerator: cfg.Numerator,
		numCfg:    numCfg,
		numOpts:   opts,
		txManager: cfg.TxManager,
		hooks:     domain.NewHookRegistry[*Report](),
		observer:  observer,
		now:       clock,
	}
}

// Family returns the family this service numbers.
func (s *Service) Family() Family {
	return s.family
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Report] {
	return s.hooks
}

// Create persists a new report. A caller-supplied ReportNo is stored verbatim;
// an empty one is allocated. If the allocated number is already taken, the
// counter is raised to the stored maximum, a fresh number is allocated and
// the insert is retried once.
func (s *Service) Create(ctx context.Context, report *Report) error {
	if report.Family == "" {
		report.Family = s.family.Prefix
	}
	if report.Family != s.family.Prefix {
		return apperror.NewValidation("report belongs to another family").
			WithDetail("family", report.Family).
			WithDetail("expected", s.family.Prefix)
	}

	// Run before-create hooks (for enrichment, validation, etc.)
	if err := s.hooks.RunBeforeCreate(ctx, report); err != nil {
		return err
	}

	if err := report.Validate(ctx); err != nil {
		return domain.NormalizeValidationErr(err)
	}

	if userID := appctx.GetUserID(ctx); userID != "" && report.CreatedBy == "" {
		report.CreatedBy = userID
		report.UpdatedBy = userID
	}

	period := s.now()
	allocated := !report.HasNumber()
	if allocated {
		if err := s.allocate(ctx, report, period); err != nil {
			return err
		}
	}

	err := s.insert(ctx, report)
	if err != nil && allocated && apperror.IsDuplicate(err) {
		s.observer.NumberCollision(s.family.Prefix)
		logger.Warn(ctx, "allocated report number already taken, retrying",
			"family", s.family.Prefix,
			"report_no", report.ReportNo)

		s.resync(ctx, period)
		if err := s.allocate(ctx, report, period); err != nil {
			return err
		}
		err = s.insert(ctx, report)
		if err != nil && apperror.IsDuplicate(err) {
			s.observer.NumberCollision(s.family.Prefix)
			return apperror.NewNumberCollision(s.family.Prefix, report.ReportNo).WithCause(err)
		}
	}
	if err != nil {
		return err
	}

	if err := s.hooks.RunAfterCreate(ctx, report); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}

	logger.Info(ctx, "report created",
		"id", report.ID,
		"report_no", report.ReportNo,
		"allocated", allocated)

	return nil
}

func (s *Service) allocate(ctx context.Context, report *Report, period time.Time) error {
	number, err := s.numerator.GetNextNumber(ctx, s.numCfg, s.numOpts, period)
	if err != nil {
		return fmt.Errorf("generate number: %w", err)
	}
	report.ReportNo = number
	return nil
}

// resync catches a counter up with numbers stored past it, such as
// caller-supplied ones. Scan reads the stored numbers on every call anyway.
func (s *Service) resync(ctx context.Context, period time.Time) {
	if s.numOpts.Strategy == numerator.StrategyScan {
		return
	}
	syncer, ok := s.numerator.(numerator.Syncer)
	if !ok {
		return
	}
	val, err := syncer.Sync(ctx, s.numCfg, period)
	if err != nil {
		logger.Warn(ctx, "report counter resync failed", "family", s.family.Prefix, "error", err)
		return
	}
	logger.Info(ctx, "report counter resynced", "family", s.family.Prefix, "counter", val)
}

func (s *Service) insert(ctx context.Context, report *Report) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, report); err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		return nil
	})
}

// Update saves changes to an existing report. The report number and family
// are fixed at creation; an empty ReportNo keeps the stored one.
func (s *Service) Update(ctx context.Context, report *Report) error {
	if err := s.hooks.RunBeforeUpdate(ctx, report); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetForUpdate(ctx, report.ID)
		if err != nil {
			return domain.NormalizeGetErr(err, entityName, report.ID.String())
		}
		if current.DeletionMark {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "Cannot modify deleted report").
				WithDetail("report_no", current.ReportNo)
		}

		if report.ReportNo == "" {
			report.ReportNo = current.ReportNo
		} else if report.ReportNo != current.ReportNo {
			return apperror.NewImmutableField(entityName, "reportNo").
				WithDetail("current", current.ReportNo).
				WithDetail("requested", report.ReportNo)
		}
		if report.Family == "" {
			report.Family = current.Family
		} else if report.Family != current.Family {
			return apperror.NewImmutableField(entityName, "family")
		}

		if err := report.Validate(ctx); err != nil {
			return domain.NormalizeValidationErr(err)
		}

		report.CreatedAt = current.CreatedAt
		report.CreatedBy = current.CreatedBy
		if userID := appctx.GetUserID(ctx); userID != "" {
			report.UpdatedBy = userID
		}

		if err := s.repo.Update(ctx, report); err != nil {
			return fmt.Errorf("update report: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	report.Touch()

	if err := s.hooks.RunAfterUpdate(ctx, report); err != nil {
		logger.Warn(ctx, "after-update hook failed", "error", err)
	}

	return nil
}

// Delete soft-deletes a report. Its number stays taken.
func (s *Service) Delete(ctx context.Context, reportID id.ID) error {
	report, err := s.repo.GetByID(ctx, reportID)
	if err != nil {
		return domain.NormalizeGetErr(err, entityName, reportID.String())
	}

	if err := s.hooks.RunBeforeDelete(ctx, report); err != nil {
		return err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, reportID); err != nil {
			return fmt.Errorf("delete report: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	report.MarkDeleted()

	if err := s.hooks.RunAfterDelete(ctx, report); err != nil {
		logger.Warn(ctx, "after-delete hook failed", "error", err)
	}

	logger.Info(ctx, "report deleted", "id", reportID, "report_no", report.ReportNo)
	return nil
}

// GetByID retrieves a report.
func (s *Service) GetByID(ctx context.Context, reportID id.ID) (*Report, error) {
	report, err := s.repo.GetByID(ctx, reportID)
	if err != nil {
		return nil, domain.NormalizeGetErr(err, entityName, reportID.String())
	}
	return report, nil
}

// GetByNumber retrieves a report by its report_no.
func (s *Service) GetByNumber(ctx context.Context, reportNo string) (*Report, error) {
	report, err := s.repo.GetByNumber(ctx, reportNo)
	if err != nil {
		return nil, domain.NormalizeGetErr(err, entityName, reportNo)
	}
	return report, nil
}

// List retrieves reports with filtering.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Report], error) {
	if filter.Limit <= 0 {
		filter.Limit = domain.DefaultListFilter().Limit
	}
	return s.repo.List(ctx, filter)
}

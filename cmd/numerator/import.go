package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"inspecta/internal/core/apperror"
	appctx "inspecta/internal/core/context"
	"inspecta/internal/core/numerator"
	"inspecta/internal/domain/reports"
	infranumerator "inspecta/internal/infrastructure/numerator"
	"inspecta/pkg/logger"
)

// importRecord is one line of a legacy JSONL export.
type importRecord struct {
	ReportNo       string          `json:"reportNo"`
	ClientName     string          `json:"clientName"`
	InspectorName  string          `json:"inspectorName"`
	Location       string          `json:"location"`
	InspectionDate string          `json:"inspectionDate"`
	Status         string          `json:"status"`
	Comment        string          `json:"comment"`
	FormData       json.RawMessage `json:"formData"`
}

func (r importRecord) toReport(family reports.Family) (*reports.Report, error) {
	report := reports.NewReport(family, r.ClientName)
	report.ReportNo = strings.TrimSpace(r.ReportNo)
	report.InspectorName = r.InspectorName
	report.Location = r.Location
	report.Comment = r.Comment
	report.FormData = r.FormData
	if r.Status != "" {
		report.Status = reports.Status(r.Status)
	}
	if r.InspectionDate != "" {
		date, err := parseDate(r.InspectionDate)
		if err != nil {
			return nil, err
		}
		report.InspectionDate = date
	}
	return report, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("inspectionDate %q: expected RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

// decodeRecords calls fn for every JSON object in r. Line numbers count objects.
func decodeRecords(r io.Reader, fn func(n int, rec importRecord) error) error {
	dec := json.NewDecoder(r)
	for n := 1; ; n++ {
		var rec importRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("record %d: %w", n, err)
		}
		if err := fn(n, rec); err != nil {
			return err
		}
	}
}

// yearsOf returns the distinct years of well-formed numbers of prefix.
func yearsOf(prefix string, numbers []string) []int {
	seen := make(map[int]struct{})
	for _, s := range numbers {
		if n, ok := numerator.Parse(s); ok && n.Prefix == prefix {
			seen[n.Year] = struct{}{}
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

type importStats struct {
	created   int
	allocated int
	failed    int
}

// importer creates reports from legacy records of one family.
type importer struct {
	reports     *reports.Service
	numbers     *infranumerator.Service
	cfg         numerator.Config
	stopOnError bool
	// sync raises counters past verbatim numbers before the next allocation
	// and once more at the end.
	sync bool

	pending []string
}

// run imports every record of in. Rejected records are counted and logged
// unless stopOnError is set.
func (im *importer) run(ctx context.Context, in io.Reader) (importStats, error) {
	var stats importStats
	err := decodeRecords(in, func(n int, rec importRecord) error {
		err := im.create(ctx, rec, &stats)
		if err == nil {
			return nil
		}

		stats.failed++
		logger.Warn(ctx, "import record rejected", "record", n, "report_no", rec.ReportNo, "error", err)
		if im.stopOnError {
			return fmt.Errorf("record %d: %w", n, err)
		}
		if apperror.IsCode(err, apperror.CodeNumberCollision) {
			logger.Warn(ctx, "numbering collided twice; run sync before retrying", "family", im.cfg.Prefix)
		}
		return nil
	})
	if err != nil {
		return stats, err
	}
	return stats, im.flush(ctx)
}

func (im *importer) create(ctx context.Context, rec importRecord, stats *importStats) error {
	report, err := rec.toReport(im.reports.Family())
	if err != nil {
		return err
	}

	supplied := report.HasNumber()
	if !supplied {
		if err := im.flush(ctx); err != nil {
			return err
		}
	}
	if err := im.reports.Create(ctx, report); err != nil {
		return err
	}

	stats.created++
	if supplied {
		im.pending = append(im.pending, report.ReportNo)
	} else {
		stats.allocated++
	}
	return nil
}

// flush syncs the counters of every year that received verbatim numbers
// since the last flush.
func (im *importer) flush(ctx context.Context) error {
	if !im.sync || len(im.pending) == 0 {
		return nil
	}
	for _, year := range yearsOf(im.cfg.Prefix, im.pending) {
		if _, err := im.numbers.Sync(ctx, im.cfg, periodOf(year)); err != nil {
			return fmt.Errorf("sync %s %d: %w", im.cfg.Prefix, year, err)
		}
	}
	im.pending = im.pending[:0]
	return nil
}

func newImportCommand(opts *rootOptions) *cobra.Command {
	var (
		family      string
		file        string
		stopOnError bool
		skipSync    bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import legacy reports from JSONL",
		Long: `Create reports from a JSONL file. Records with reportNo keep it verbatim;
records without one are numbered by the configured strategy. Counters are
synced past verbatim numbers before the next numbered record and at the end.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fam, err := familyFlag(family)
			if err != nil {
				return err
			}

			in := cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			ctx, a, err := opts.bootstrap(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := sharedCounter(a); err != nil {
				return err
			}
			svc, err := a.ReportService(fam)
			if err != nil {
				return err
			}
			if appctx.GetUserID(ctx) == "" {
				ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: "numerator-import"})
			}

			im := &importer{
				reports:     svc,
				numbers:     a.Numerator,
				cfg:         a.NumberConfig(fam),
				stopOnError: stopOnError,
				sync:        !skipSync,
			}
			stats, err := im.run(ctx, in)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created=%d allocated=%d failed=%d\n", stats.created, stats.allocated, stats.failed)
			if stats.failed > 0 {
				return fmt.Errorf("%d records failed", stats.failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&family, "family", "f", "", "Report family prefix (required)")
	cmd.Flags().StringVar(&file, "file", "-", "JSONL file to import, - for stdin")
	cmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "Abort on the first rejected record")
	cmd.Flags().BoolVar(&skipSync, "skip-sync", false, "Do not sync counters past verbatim numbers")
	_ = cmd.MarkFlagRequired("family")

	return cmd
}

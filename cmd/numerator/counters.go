package main

import (
	"fmt"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"inspecta/internal/domain/reports"
)

func newAllocateCommand(opts *rootOptions) *cobra.Command {
	var (
		family string
		year   int
		count  int
	)

	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Issue report numbers",
		Long:  `Issue one or more numbers from the configured counter backend without creating reports. Issued numbers are consumed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fam, err := familyFlag(family)
			if err != nil {
				return err
			}
			if count < 1 {
				return fmt.Errorf("--count must be positive")
			}

			ctx, a, err := opts.bootstrap(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := sharedCounter(a); err != nil {
				return err
			}

			cfg := a.NumberConfig(fam)
			for i := 0; i < count; i++ {
				number, err := a.Numerator.GetNextNumber(ctx, cfg, a.Options, periodOf(year))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), number)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&family, "family", "f", "", "Report family prefix (required)")
	cmd.Flags().IntVarP(&year, "year", "y", 0, "Numbering year (default: current year)")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "How many numbers to issue")
	_ = cmd.MarkFlagRequired("family")

	return cmd
}

func newCurrentCommand(opts *rootOptions) *cobra.Command {
	var (
		family string
		year   int
	)

	cmd := &cobra.Command{
		Use:   "current",
		Short: "Show the last issued sequence",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fam, err := familyFlag(family)
			if err != nil {
				return err
			}

			ctx, a, err := opts.bootstrap(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := a.NumberConfig(fam)
			period := periodOf(year)
			current, err := a.Numerator.Current(ctx, cfg, period)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d current=%d next=%s\n",
				fam.Prefix, period.Year(), current, cfg.Format(period.Year(), current+1))
			return nil
		},
	}

	cmd.Flags().StringVarP(&family, "family", "f", "", "Report family prefix (required)")
	cmd.Flags().IntVarP(&year, "year", "y", 0, "Numbering year (default: current year)")
	_ = cmd.MarkFlagRequired("family")

	return cmd
}

func newSetCommand(opts *rootOptions) *cobra.Command {
	var (
		family string
		year   int
		value  int64
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set the last issued sequence",
		Long:  `Set the counter so the next allocation returns value+1. Lowering a counter can reissue numbers; the unique index still rejects them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fam, err := familyFlag(family)
			if err != nil {
				return err
			}

			ctx, a, err := opts.bootstrap(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := sharedCounter(a); err != nil {
				return err
			}

			cfg := a.NumberConfig(fam)
			period := periodOf(year)
			if err := a.Numerator.SetNextNumber(ctx, cfg, period, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d next=%s\n", fam.Prefix, period.Year(), cfg.Format(period.Year(), value+1))
			return nil
		},
	}

	cmd.Flags().StringVarP(&family, "family", "f", "", "Report family prefix (required)")
	cmd.Flags().IntVarP(&year, "year", "y", 0, "Numbering year (default: current year)")
	cmd.Flags().Int64Var(&value, "value", 0, "Last issued sequence (required)")
	_ = cmd.MarkFlagRequired("family")
	_ = cmd.MarkFlagRequired("value")

	return cmd
}

type syncResult struct {
	prefix  string
	counter int64
}

func newSyncCommand(opts *rootOptions) *cobra.Command {
	var (
		family string
		year   int
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Raise counters to the highest stored report number",
		Long:  `Scan stored report numbers and raise each counter to the highest sequence found. Counters are never lowered. Without --family every family is synced concurrently.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			families := reports.Families()
			if family != "" {
				fam, err := familyFlag(family)
				if err != nil {
					return err
				}
				families = []reports.Family{fam}
			}

			ctx, a, err := opts.bootstrap(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.Reports == nil {
				return fmt.Errorf("sync needs stored reports: database.dsn is not configured")
			}
			if err := sharedCounter(a); err != nil {
				return err
			}

			period := periodOf(year)
			var (
				mu      sync.Mutex
				results = make([]syncResult, 0, len(families))
			)
			g, gctx := errgroup.WithContext(ctx)
			for _, fam := range families {
				fam := fam
				g.Go(func() error {
					val, err := a.Numerator.Sync(gctx, a.NumberConfig(fam), period)
					if err != nil {
						return fmt.Errorf("%s: %w", fam.Prefix, err)
					}
					mu.Lock()
					results = append(results, syncResult{prefix: fam.Prefix, counter: val})
					mu.Unlock()
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "FAMILY\tYEAR\tCOUNTER\n")
			for _, fam := range families {
				for _, r := range results {
					if r.prefix == fam.Prefix {
						fmt.Fprintf(w, "%s\t%d\t%d\n", r.prefix, period.Year(), r.counter)
					}
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&family, "family", "f", "", "Report family prefix (default: all)")
	cmd.Flags().IntVarP(&year, "year", "y", 0, "Numbering year (default: current year)")

	return cmd
}

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var (
		family string
		year   int
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show manual counter adjustments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fam, err := familyFlag(family)
			if err != nil {
				return err
			}

			ctx, a, err := opts.bootstrap(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.Audit == nil {
				return fmt.Errorf("history needs database.dsn")
			}

			entries, err := a.Audit.History(ctx, fam.Prefix, year, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "WHEN\tYEAR\tACTION\tFROM\tTO\tUSER\n")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%d\t%s\n",
					e.CreatedAt.Format(time.RFC3339), e.Year, e.Action, e.PreviousVal, e.NewVal, e.UserID)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&family, "family", "f", "", "Report family prefix (required)")
	cmd.Flags().IntVarP(&year, "year", "y", 0, "Numbering year (default: all)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum entries")
	_ = cmd.MarkFlagRequired("family")

	return cmd
}

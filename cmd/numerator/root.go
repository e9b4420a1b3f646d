package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"inspecta/internal/app"
	appctx "inspecta/internal/core/context"
	"inspecta/internal/config"
	"inspecta/internal/domain/reports"
	"inspecta/pkg/logger"
)

type rootOptions struct {
	configPath string
	user       string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "numerator",
		Short:         "Report numbering administration",
		Long:          `Manage report number counters: run migrations, inspect and adjust counters, sync them with stored reports and import legacy reports.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file (default: ./configs/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.user, "user", os.Getenv("USER"), "Operator recorded in the audit journal and as report creator")

	cmd.AddCommand(
		newMigrateCommand(opts),
		newAllocateCommand(opts),
		newCurrentCommand(opts),
		newSetCommand(opts),
		newSyncCommand(opts),
		newHistoryCommand(opts),
		newImportCommand(opts),
	)

	return cmd
}

// bootstrap loads config and builds the app. The caller must Close it.
func (o *rootOptions) bootstrap(cmd *cobra.Command) (context.Context, *app.App, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: true,
		OutputPaths: []string{"stderr"},
		Service:     cfg.App.Name,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := logger.WithLogger(cmd.Context(), log.WithComponent("cli"))
	if o.user != "" {
		ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: o.user})
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return ctx, a, nil
}

// sharedCounter rejects the memory backend for commands that change counters:
// its counters die with the process.
func sharedCounter(a *app.App) error {
	if a.Config.Numerator.Backend == config.BackendMemory {
		return fmt.Errorf("numerator.backend=%s keeps counters in this process only; use %s or %s",
			config.BackendMemory, config.BackendPostgres, config.BackendRedis)
	}
	return nil
}

// familyFlag resolves --family to a known family.
func familyFlag(prefix string) (reports.Family, error) {
	family, ok := reports.FamilyByPrefix(strings.ToUpper(strings.TrimSpace(prefix)))
	if !ok {
		known := make([]string, 0, len(reports.Families()))
		for _, f := range reports.Families() {
			known = append(known, f.Prefix)
		}
		return reports.Family{}, fmt.Errorf("unknown family %q (known: %s)", prefix, strings.Join(known, ", "))
	}
	return family, nil
}

// periodOf returns a time inside year, or now when year is 0.
func periodOf(year int) time.Time {
	if year == 0 {
		return time.Now()
	}
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"inspecta/internal/infrastructure/storage/postgres/migrations"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
		Long:  `Apply, roll back or inspect the embedded schema migrations (counters and report tables).`,
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, a, err := opts.bootstrap(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.Pool == nil {
				return fmt.Errorf("database.dsn is not configured")
			}

			db := a.Pool.StdDB()
			defer db.Close()
			return migrations.Down(ctx, db, steps)
		},
	}
	down.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to rollback")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Run all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx, a, err := opts.bootstrap(cmd)
				if err != nil {
					return err
				}
				defer a.Close()
				if a.Pool == nil {
					return fmt.Errorf("database.dsn is not configured")
				}

				db := a.Pool.StdDB()
				defer db.Close()
				version, err := migrations.Up(ctx, db)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
				return nil
			},
		},
		down,
		&cobra.Command{
			Use:   "status",
			Short: "Show migration status",
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx, a, err := opts.bootstrap(cmd)
				if err != nil {
					return err
				}
				defer a.Close()
				if a.Pool == nil {
					return fmt.Errorf("database.dsn is not configured")
				}

				db := a.Pool.StdDB()
				defer db.Close()
				return migrations.Status(ctx, db)
			},
		},
	)

	return cmd
}

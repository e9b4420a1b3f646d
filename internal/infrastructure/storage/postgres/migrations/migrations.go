// Package migrations applies the embedded SQL schema with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	"inspecta/pkg/logger"
)

//go:embed sql/*.sql
var scripts embed.FS

const scriptsDir = "sql"

// gooseLogger routes goose output through the application logger.
type gooseLogger struct {
	log *logger.Logger
}

func (g gooseLogger) Printf(format string, v ...any) { g.log.Infof(format, v...) }
func (g gooseLogger) Fatalf(format string, v ...any) { g.log.Fatalf(format, v...) }

func setup(ctx context.Context) error {
	goose.SetBaseFS(scripts)
	goose.SetLogger(gooseLogger{log: logger.FromContext(ctx).WithComponent("migrations")})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return nil
}

// Up applies all pending migrations and returns the resulting version.
func Up(ctx context.Context, db *sql.DB) (int64, error) {
	if err := setup(ctx); err != nil {
		return 0, err
	}

	from, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}

	if err := goose.UpContext(ctx, db, scriptsDir); err != nil {
		return from, fmt.Errorf("failed to run migrations: %w", err)
	}

	to, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return from, fmt.Errorf("failed to get final version: %w", err)
	}

	logger.Info(ctx, "migration completed", "from_version", from, "to_version", to)
	return to, nil
}

// Down rolls back the given number of migrations.
func Down(ctx context.Context, db *sql.DB, steps int) error {
	if err := setup(ctx); err != nil {
		return err
	}
	for i := 0; i < steps; i++ {
		if err := goose.DownContext(ctx, db, scriptsDir); err != nil {
			return fmt.Errorf("failed to run down migration: %w", err)
		}
	}
	return nil
}

// Status prints the applied state of every migration through the logger.
func Status(ctx context.Context, db *sql.DB) error {
	if err := setup(ctx); err != nil {
		return err
	}
	if err := goose.StatusContext(ctx, db, scriptsDir); err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}
	return nil
}

package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the repositories react to.
const (
	CodeUniqueViolation      = "23505"
	CodeSerializationFailure = "40001"
)

// IsUniqueViolation reports whether err is a unique-index violation.
// When constraint is non-empty, only that constraint matches.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != CodeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

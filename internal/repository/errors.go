package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MohakGupta21/MovieReviewAPIs/internal/domain"
)

// Postgres SQLSTATE codes the repositories translate.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgNotNullViolation    = "23502"
)

// translateError maps driver errors onto the domain error taxonomy.
// Errors it does not recognise are returned unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		if pgErr.ConstraintName == "movies_name_key" {
			return domain.ErrDuplicateName
		}
	case pgForeignKeyViolation:
		return domain.ErrNotFound
	case pgCheckViolation:
		switch pgErr.ConstraintName {
		case "reviews_rating_range":
			return domain.NewValidationError("rating", "must be between 0 and 10")
		case "movies_avg_rating_range":
			return domain.NewValidationError("avg_rating", "must be between 0 and 10")
		}
		return domain.NewValidationError(pgErr.ColumnName, pgErr.Message)
	case pgNotNullViolation:
		return domain.NewValidationError(pgErr.ColumnName, "is required")
	}
	return err
}

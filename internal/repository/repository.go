package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MohakGupta21/MovieReviewAPIs/internal/domain"
	"github.com/MohakGupta21/MovieReviewAPIs/internal/store"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = domain.ErrNotFound

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository aggregates all domain-specific repositories.
type Repository struct {
	Movies  *MoviesRepository
	Reviews *ReviewsRepository
}

// New constructs a Repository backed by the provided store.
func New(st *store.Store) *Repository {
	return NewWithQuerier(st.Pool())
}

// NewWithQuerier builds repositories over any Querier.
func NewWithQuerier(q Querier) *Repository {
	return &Repository{
		Movies:  &MoviesRepository{db: q},
		Reviews: &ReviewsRepository{db: q},
	}
}

// WithTx returns repositories bound to tx.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return NewWithQuerier(tx)
}

package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/MohakGupta21/MovieReviewAPIs/internal/domain"
)

// maxPageSize caps a single page of the movie listing.
const maxPageSize = 100

// MoviesRepository reads and writes the movies table.
type MoviesRepository struct {
	db Querier
}

const selectMovie = `SELECT id, name, release_date, avg_rating::float8, created_at, updated_at FROM movies`

const returningMovie = `RETURNING id, name, release_date, avg_rating::float8, created_at, updated_at`

// MovieCreateParams holds the columns a caller supplies on insert.
type MovieCreateParams struct {
	Name        string
	ReleaseDate string
}

// MovieUpdateParams holds the caller-editable movie fields.
type MovieUpdateParams struct {
	Name        string
	ReleaseDate string
}

// MovieListFilters narrows and pages the listing.
// A zero Limit lists every matching movie.
type MovieListFilters struct {
	Query  *string
	Limit  int
	Cursor *MovieCursor
}

// MovieCursor is a keyset position: the last id already returned.
type MovieCursor struct {
	ID int64 `json:"id"`
}

// MovieListResult is one page of movies. NextCursor is set only when the
// page came back full.
type MovieListResult struct {
	Items      []domain.Movie
	NextCursor *string
}

func (r *MoviesRepository) Create(ctx context.Context, params MovieCreateParams) (domain.Movie, error) {
	return r.one(ctx, `INSERT INTO movies (name, release_date) VALUES ($1, $2) `+returningMovie,
		params.Name, params.ReleaseDate)
}

func (r *MoviesRepository) GetByID(ctx context.Context, id int64) (domain.Movie, error) {
	return r.one(ctx, selectMovie+` WHERE id = $1`, id)
}

// LockByID reads a movie and holds its row lock until the transaction ends.
// Every review mutation takes this lock first, so concurrent writers on one
// movie serialize and each recomputes the average from committed reviews.
func (r *MoviesRepository) LockByID(ctx context.Context, id int64) (domain.Movie, error) {
	return r.one(ctx, selectMovie+` WHERE id = $1 FOR UPDATE`, id)
}

// LockByName is LockByID keyed by name.
func (r *MoviesRepository) LockByName(ctx context.Context, name string) (domain.Movie, error) {
	return r.one(ctx, selectMovie+` WHERE name = $1 FOR UPDATE`, name)
}

// Update rewrites name and release date. avg_rating is left alone.
func (r *MoviesRepository) Update(ctx context.Context, id int64, params MovieUpdateParams) (domain.Movie, error) {
	return r.one(ctx, `UPDATE movies SET name = $2, release_date = $3, updated_at = now() WHERE id = $1 `+returningMovie,
		id, params.Name, params.ReleaseDate)
}

// SetAvgRating stores a recomputed average.
func (r *MoviesRepository) SetAvgRating(ctx context.Context, id int64, avg float64) error {
	return r.execOne(ctx, `UPDATE movies SET avg_rating = $2, updated_at = now() WHERE id = $1`, id, avg)
}

// Delete removes a movie. Its reviews go with it through ON DELETE CASCADE.
func (r *MoviesRepository) Delete(ctx context.Context, id int64) error {
	return r.execOne(ctx, `DELETE FROM movies WHERE id = $1`, id)
}

// List returns movies in id order, filtered by a case-insensitive name
// substring and resumed after an optional cursor.
func (r *MoviesRepository) List(ctx context.Context, filters MovieListFilters) (MovieListResult, error) {
	limit := filters.Limit
	switch {
	case limit < 0:
		limit = 0
	case limit > maxPageSize:
		limit = maxPageSize
	}

	var (
		conds []string
		args  []any
	)
	if filters.Query != nil {
		if q := strings.TrimSpace(*filters.Query); q != "" {
			args = append(args, "%"+q+"%")
			conds = append(conds, fmt.Sprintf("name ILIKE $%d", len(args)))
		}
	}
	if filters.Cursor != nil {
		args = append(args, filters.Cursor.ID)
		conds = append(conds, fmt.Sprintf("id > $%d", len(args)))
	}

	sql := selectMovie
	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}
	sql += " ORDER BY id"
	if limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return MovieListResult{}, translateError(err)
	}
	movies, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Movie, error) {
		return scanMovie(row)
	})
	if err != nil {
		return MovieListResult{}, translateError(err)
	}

	result := MovieListResult{Items: movies}
	if limit > 0 && len(movies) == limit {
		token, err := encodeCursor(MovieCursor{ID: movies[len(movies)-1].ID})
		if err != nil {
			return MovieListResult{}, err
		}
		result.NextCursor = &token
	}
	return result, nil
}

func (r *MoviesRepository) one(ctx context.Context, sql string, args ...any) (domain.Movie, error) {
	movie, err := scanMovie(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return domain.Movie{}, translateError(err)
	}
	return movie, nil
}

func (r *MoviesRepository) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMovie(row pgx.Row) (domain.Movie, error) {
	m := domain.Movie{Reviews: []domain.Review{}}
	if err := row.Scan(&m.ID, &m.Name, &m.ReleaseDate, &m.AvgRating, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return domain.Movie{}, err
	}
	return m, nil
}

// Cursor tokens are unpadded URL-safe base64 of a small JSON object.
func encodeCursor(c MovieCursor) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeCursor parses a token produced by List. An empty token means the
// first page and yields a nil cursor.
func DecodeCursor(token string) (*MovieCursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("malformed cursor: %w", err)
	}
	var c MovieCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("malformed cursor: %w", err)
	}
	if c.ID <= 0 {
		return nil, fmt.Errorf("malformed cursor: id must be positive")
	}
	return &c, nil
}

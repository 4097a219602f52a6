package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MohakGupta21/MovieReviewAPIs/internal/domain"
)

// ReviewsRepository provides persistence helpers for movie reviews.
type ReviewsRepository struct {
	db Querier
}

const reviewColumns = `
    id,
    movie_id,
    reviewer,
    rating,
    comments,
    created_at,
    updated_at
`

// ReviewCreateParams captures the payload required to insert a review.
type ReviewCreateParams struct {
	MovieID  int64
	Reviewer string
	Rating   int
	Comments string
}

// ReviewUpdateParams holds optional replacements; nil keeps the stored value.
type ReviewUpdateParams struct {
	Rating   *int
	Comments *string
	Reviewer *string
}

// Create inserts a review row.
func (r *ReviewsRepository) Create(ctx context.Context, params ReviewCreateParams) (domain.Review, error) {
	query := fmt.Sprintf(`
        INSERT INTO reviews (movie_id, reviewer, rating, comments)
        VALUES ($1,$2,$3,$4)
        RETURNING %s
    `, reviewColumns)

	review, err := scanReview(r.db.QueryRow(ctx, query, params.MovieID, params.Reviewer, params.Rating, params.Comments))
	if err != nil {
		return domain.Review{}, translateError(err)
	}
	return review, nil
}

// GetByID retrieves a single review.
func (r *ReviewsRepository) GetByID(ctx context.Context, id int64) (domain.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE id = $1`, reviewColumns)
	review, err := scanReview(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Review{}, translateError(err)
	}
	return review, nil
}

// ListByMovie returns a movie's reviews in insertion order.
func (r *ReviewsRepository) ListByMovie(ctx context.Context, movieID int64) ([]domain.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE movie_id = $1 ORDER BY id ASC`, reviewColumns)
	rows, err := r.db.Query(ctx, query, movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := make([]domain.Review, 0)
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reviews, nil
}

// ListByMovieIDs groups the reviews of several movies by movie id.
func (r *ReviewsRepository) ListByMovieIDs(ctx context.Context, movieIDs []int64) (map[int64][]domain.Review, error) {
	grouped := make(map[int64][]domain.Review, len(movieIDs))
	if len(movieIDs) == 0 {
		return grouped, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE movie_id = ANY($1) ORDER BY movie_id ASC, id ASC`, reviewColumns)
	rows, err := r.db.Query(ctx, query, movieIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		grouped[review.MovieID] = append(grouped[review.MovieID], review)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grouped, nil
}

// Ratings returns every rating currently stored for a movie.
func (r *ReviewsRepository) Ratings(ctx context.Context, movieID int64) ([]int, error) {
	rows, err := r.db.Query(ctx, `SELECT rating FROM reviews WHERE movie_id = $1 ORDER BY id ASC`, movieID)
	if err != nil {
		return nil, err
	}
	ratings, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, err
	}
	return ratings, nil
}

// Update applies the non-nil fields of params to a review.
func (r *ReviewsRepository) Update(ctx context.Context, id int64, params ReviewUpdateParams) (domain.Review, error) {
	query := fmt.Sprintf(`
        UPDATE reviews
        SET rating = COALESCE($2, rating),
            comments = COALESCE($3, comments),
            reviewer = COALESCE($4, reviewer),
            updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, reviewColumns)

	review, err := scanReview(r.db.QueryRow(ctx, query, id, params.Rating, params.Comments, params.Reviewer))
	if err != nil {
		return domain.Review{}, translateError(err)
	}
	return review, nil
}

// Delete removes a review and reports the movie it belonged to.
func (r *ReviewsRepository) Delete(ctx context.Context, id int64) (int64, error) {
	var movieID int64
	err := r.db.QueryRow(ctx, `DELETE FROM reviews WHERE id = $1 RETURNING movie_id`, id).Scan(&movieID)
	if err != nil {
		return 0, translateError(err)
	}
	return movieID, nil
}

func scanReview(row pgx.Row) (domain.Review, error) {
	var review domain.Review
	err := row.Scan(
		&review.ID,
		&review.MovieID,
		&review.Reviewer,
		&review.Rating,
		&review.Comments,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		return domain.Review{}, err
	}
	return review, nil
}

// Package catalog implements the movie and review operations. Every
// operation runs as one transaction; review mutations recompute the owning
// movie's average inside that same transaction.
package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MohakGupta21/MovieReviewAPIs/internal/domain"
	"github.com/MohakGupta21/MovieReviewAPIs/internal/logger"
	"github.com/MohakGupta21/MovieReviewAPIs/internal/repository"
)

// TxRunner executes a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	WithReadTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Options carries optional collaborators. Zero values fall back to the
// recomputing aggregator, no cache, no events and a no-op logger.
type Options struct {
	Aggregator Aggregator
	Cache      MovieCache
	Publisher  RatingPublisher
	Logger     *logger.Logger
	Now        func() time.Time
}

// Service is the catalog store.
type Service struct {
	tx        TxRunner
	repo      *repository.Repository
	agg       Aggregator
	cache     MovieCache
	publisher RatingPublisher
	logger    *logger.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// New wires a Service.
func New(tx TxRunner, repo *repository.Repository, opts Options) *Service {
	s := &Service{
		tx:        tx,
		repo:      repo,
		agg:       opts.Aggregator,
		cache:     opts.Cache,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		tracer:    otel.Tracer("github.com/MohakGupta21/MovieReviewAPIs/internal/catalog"),
		now:       opts.Now,
	}
	if s.agg == nil {
		s.agg = RatingAggregator{}
	}
	if s.cache == nil {
		s.cache = noopCache{}
	}
	if s.publisher == nil {
		s.publisher = noopPublisher{}
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// ReviewInput is the payload of CreateReview. The movie is referenced by
// MovieID when non-zero, otherwise by MovieName.
type ReviewInput struct {
	MovieID   int64
	MovieName string
	Rating    *int
	Reviewer  string
	Comments  string
}

// ReviewUpdate holds optional replacements; nil keeps the stored value.
type ReviewUpdate struct {
	Rating   *int
	Comments *string
	Reviewer *string
}

// CreateMovie inserts a movie with a zero average and no reviews.
func (s *Service) CreateMovie(ctx context.Context, name, releaseDate string) (movie domain.Movie, err error) {
	ctx, span := s.tracer.Start(ctx, "catalog.CreateMovie")
	defer func() { endSpan(span, err) }()

	name, releaseDate, err = validateMovieFields(name, releaseDate)
	if err != nil {
		return domain.Movie{}, err
	}

	err = s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		var txErr error
		movie, txErr = s.repo.WithTx(tx).Movies.Create(ctx, repository.MovieCreateParams{
			Name:        name,
			ReleaseDate: releaseDate,
		})
		return txErr
	})
	if err != nil {
		return domain.Movie{}, wrapStoreError("create movie", err)
	}

	s.logger.Info("movie created", "movie_id", movie.ID, "name", movie.Name)
	return movie, nil
}

// ListMovies returns movies with their nested reviews.
func (s *Service) ListMovies(ctx context.Context, filters repository.MovieListFilters) (result repository.MovieListResult, err error) {
	ctx, span := s.tracer.Start(ctx, "catalog.ListMovies")
	defer func() { endSpan(span, err) }()

	err = s.tx.WithReadTx(ctx, func(tx pgx.Tx) error {
		repo := s.repo.WithTx(tx)
		var txErr error
		result, txErr = repo.Movies.List(ctx, filters)
		if txErr != nil {
			return txErr
		}
		ids := make([]int64, 0, len(result.Items))
		for _, m := range result.Items {
			ids = append(ids, m.ID)
		}
		grouped, txErr := repo.Reviews.ListByMovieIDs(ctx, ids)
		if txErr != nil {
			return txErr
		}
		for i := range result.Items {
			if reviews, ok := grouped[result.Items[i].ID]; ok {
				result.Items[i].Reviews = reviews
			}
		}
		return nil
	})
	if err != nil {
		return repository.MovieListResult{}, wrapStoreError("list movies", err)
	}
	span.SetAttributes(attribute.Int("movies.count", len(result.Items)))
	return result, nil
}

// GetMovie returns one movie with its reviews.
func (s *Service) GetMovie(ctx context.Context, id int64) (movie domain.Movie, err error) {
	ctx, span := s.tracer.Start(ctx, "catalog.GetMovie", trace.WithAttributes(attribute.Int64("movie.id", id)))
	defer func() { endSpan(span, err) }()

	if cached, ok, cacheErr := s.cache.GetMovie(ctx, id); cacheErr != nil {
		s.logger.Warn("movie cache read failed", "movie_id", id, "error", cacheErr)
	} else if ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	}

	gen, genErr := s.cache.Generation(ctx, id)
	if genErr != nil {
		s.logger.Warn("movie cache generation read failed", "movie_id", id, "error", genErr)
	}

	err = s.tx.WithReadTx(ctx, func(tx pgx.Tx) error {
		var txErr error
		movie, txErr = loadMovie(ctx, s.repo.WithTx(tx), id)
		return txErr
	})
	if err != nil {
		return domain.Movie{}, wrapStoreError("get movie", err)
	}

	// Without a generation the fill could not be checked against
	// concurrent writers, so it is skipped.
	if genErr == nil {
		stored, cacheErr := s.cache.SetMovie(ctx, movie, gen)
		switch {
		case cacheErr != nil:
			s.logger.Warn("movie cache write failed", "movie_id", id, "error", cacheErr)
		case !stored:
			s.logger.Debug("movie cache fill skipped, movie changed during read", "movie_id", id)
		}
	}
	return movie, nil
}

// UpdateMovie changes name and release date only.
func (s *Service) UpdateMovie(ctx context.Context, id int64, name, releaseDate string) (movie domain.Movie, err error) {
	ctx, span := s.tracer.Start(ctx, "catalog.UpdateMovie", trace.WithAttributes(attribute.Int64("movie.id", id)))
	defer func() { endSpan(span, err) }()

	name, releaseDate, err = validateMovieFields(name, releaseDate)
	if err != nil {
		return domain.Movie{}, err
	}

	err = s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		repo := s.repo.WithTx(tx)
		updated, txErr := repo.Movies.Update(ctx, id, repository.MovieUpdateParams{
			Name:        name,
			ReleaseDate: releaseDate,
		})
		if txErr != nil {
			return txErr
		}
		reviews, txErr := repo.Reviews.ListByMovie(ctx, id)
		if txErr != nil {
			return txErr
		}
		updated.Reviews = reviews
		movie = updated
		return nil
	})
	if err != nil {
		return domain.Movie{}, wrapStoreError("update movie", err)
	}

	s.invalidate(ctx, id)
	s.logger.Info("movie updated", "movie_id", id)
	return movie, nil
}

// DeleteMovie removes a movie and, through the foreign key, all its reviews.
func (s *Service) DeleteMovie(ctx context.Context, id int64) (err error) {
	ctx, span := s.tracer.Start(ctx, "catalog.DeleteMovie", trace.WithAttributes(attribute.Int64("movie.id", id)))
	defer func() { endSpan(span, err) }()

	err = s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		return s.repo.WithTx(tx).Movies.Delete(ctx, id)
	})
	if err != nil {
		return wrapStoreError("delete movie", err)
	}

	s.invalidate(ctx, id)
	s.logger.Info("movie deleted", "movie_id", id)
	return nil
}

// CreateReview adds a review and recomputes the movie's average in the same
// transaction. It returns the stored review and the new average.
func (s *Service) CreateReview(ctx context.Context, in ReviewInput) (review domain.Review, agg domain.RatingAggregate, err error) {
	ctx, span := s.tracer.Start(ctx, "catalog.CreateReview")
	defer func() { endSpan(span, err) }()

	params, err := validateReviewInput(in)
	if err != nil {
		return domain.Review{}, domain.RatingAggregate{}, err
	}

	err = s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		repo := s.repo.WithTx(tx)

		var (
			movie domain.Movie
			txErr error
		)
		if in.MovieID > 0 {
			movie, txErr = repo.Movies.LockByID(ctx, in.MovieID)
		} else {
			movie, txErr = repo.Movies.LockByName(ctx, strings.TrimSpace(in.MovieName))
		}
		if txErr != nil {
			return txErr
		}

		params.MovieID = movie.ID
		review, txErr = repo.Reviews.Create(ctx, params)
		if txErr != nil {
			return txErr
		}

		agg, txErr = s.agg.RecomputeAverage(ctx, repo, movie.ID)
		return txErr
	})
	if err != nil {
		return domain.Review{}, domain.RatingAggregate{}, wrapStoreError("create review", err)
	}

	s.afterReviewMutation(ctx, review.MovieID, review.ID, agg, domain.TriggerReviewCreated)
	return review, agg, nil
}

// GetReview returns a single review.
func (s *Service) GetReview(ctx context.Context, id int64) (review domain.Review, err error) {
	ctx, span := s.tracer.Start(ctx, "catalog.GetReview", trace.WithAttributes(attribute.Int64("review.id", id)))
	defer func() { endSpan(span, err) }()

	review, err = s.repo.Reviews.GetByID(ctx, id)
	if err != nil {
		return domain.Review{}, wrapStoreError("get review", err)
	}
	return review, nil
}

// ListReviewsForMovie returns the movie and its reviews in insertion order.
func (s *Service) ListReviewsForMovie(ctx context.Context, movieID int64) (movie domain.Movie, err error) {
	ctx, span := s.tracer.Start(ctx, "catalog.ListReviewsForMovie", trace.WithAttributes(attribute.Int64("movie.id", movieID)))
	defer func() { endSpan(span, err) }()

	err = s.tx.WithReadTx(ctx, func(tx pgx.Tx) error {
		var txErr error
		movie, txErr = loadMovie(ctx, s.repo.WithTx(tx), movieID)
		return txErr
	})
	if err != nil {
		return domain.Movie{}, wrapStoreError("list reviews", err)
	}
	return movie, nil
}

// UpdateReview applies the supplied fields and recomputes the average.
func (s *Service) UpdateReview(ctx context.Context, id int64, in ReviewUpdate) (review domain.Review, agg domain.RatingAggregate, err error) {
	ctx, span := s.tracer.Start(ctx, "catalog.UpdateReview", trace.WithAttributes(attribute.Int64("review.id", id)))
	defer func() { endSpan(span, err) }()

	params, err := validateReviewUpdate(in)
	if err != nil {
		return domain.Review{}, domain.RatingAggregate{}, err
	}

	err = s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		repo := s.repo.WithTx(tx)

		current, txErr := repo.Reviews.GetByID(ctx, id)
		if txErr != nil {
			return txErr
		}
		if _, txErr = repo.Movies.LockByID(ctx, current.MovieID); txErr != nil {
			return txErr
		}

		review, txErr = repo.Reviews.Update(ctx, id, params)
		if txErr != nil {
			return txErr
		}

		agg, txErr = s.agg.RecomputeAverage(ctx, repo, review.MovieID)
		return txErr
	})
	if err != nil {
		return domain.Review{}, domain.RatingAggregate{}, wrapStoreError("update review", err)
	}

	s.afterReviewMutation(ctx, review.MovieID, review.ID, agg, domain.TriggerReviewUpdated)
	return review, agg, nil
}

// DeleteReview removes a review and recomputes its former movie's average.
func (s *Service) DeleteReview(ctx context.Context, id int64) (agg domain.RatingAggregate, err error) {
	ctx, span := s.tracer.Start(ctx, "catalog.DeleteReview", trace.WithAttributes(attribute.Int64("review.id", id)))
	defer func() { endSpan(span, err) }()

	var movieID int64
	err = s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		repo := s.repo.WithTx(tx)

		current, txErr := repo.Reviews.GetByID(ctx, id)
		if txErr != nil {
			return txErr
		}
		if _, txErr = repo.Movies.LockByID(ctx, current.MovieID); txErr != nil {
			return txErr
		}

		movieID, txErr = repo.Reviews.Delete(ctx, id)
		if txErr != nil {
			return txErr
		}

		agg, txErr = s.agg.RecomputeAverage(ctx, repo, movieID)
		return txErr
	})
	if err != nil {
		return domain.RatingAggregate{}, wrapStoreError("delete review", err)
	}

	s.afterReviewMutation(ctx, movieID, id, agg, domain.TriggerReviewDeleted)
	return agg, nil
}

func loadMovie(ctx context.Context, repo *repository.Repository, id int64) (domain.Movie, error) {
	movie, err := repo.Movies.GetByID(ctx, id)
	if err != nil {
		return domain.Movie{}, err
	}
	reviews, err := repo.Reviews.ListByMovie(ctx, id)
	if err != nil {
		return domain.Movie{}, err
	}
	movie.Reviews = reviews
	return movie, nil
}

// afterReviewMutation runs post-commit side effects. Their failures are
// logged; the committed operation stays successful.
func (s *Service) afterReviewMutation(ctx context.Context, movieID, reviewID int64, agg domain.RatingAggregate, trigger string) {
	s.invalidate(ctx, movieID)

	event := domain.RatingRecomputed{
		MovieID:     movieID,
		AvgRating:   agg.Average,
		ReviewCount: agg.Count,
		Trigger:     trigger,
		ReviewID:    reviewID,
		OccurredAt:  s.now().UTC(),
	}
	if err := s.publisher.PublishRatingRecomputed(ctx, event); err != nil {
		s.logger.Warn("publish rating event failed", "movie_id", movieID, "trigger", trigger, "error", err)
	}
	s.logger.Info("avg rating recomputed",
		"movie_id", movieID,
		"review_id", reviewID,
		"trigger", trigger,
		"avg_rating", agg.Average,
		"review_count", agg.Count,
	)
}

func (s *Service) invalidate(ctx context.Context, movieID int64) {
	if err := s.cache.InvalidateMovie(ctx, movieID); err != nil {
		s.logger.Warn("movie cache invalidation failed", "movie_id", movieID, "error", err)
	}
}

// wrapStoreError passes domain errors through and wraps everything else.
func wrapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrDuplicateName) || domain.IsValidation(err) {
		return err
	}
	var storeErr *domain.StoreError
	if errors.As(err, &storeErr) {
		return err
	}
	return &domain.StoreError{Op: op, Err: err}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/MohakGupta21/MovieReviewAPIs/internal/domain"
	"github.com/MohakGupta21/MovieReviewAPIs/internal/repository"
	"github.com/MohakGupta21/MovieReviewAPIs/internal/store"
	"github.com/MohakGupta21/MovieReviewAPIs/internal/testutil"
)

type testEnv struct {
	ctx     context.Context
	store   *store.Store
	repo    *repository.Repository
	service *Service
}

func newTestEnv(t testing.TB, opts Options) *testEnv {
	t.Helper()
	st := testutil.NewStore(t, "catalog_test")
	repo := repository.New(st)
	return &testEnv{
		ctx:     context.Background(),
		store:   st,
		repo:    repo,
		service: New(st, repo, opts),
	}
}

func (e *testEnv) mustCreateMovie(t testing.TB, name string) domain.Movie {
	t.Helper()
	movie, err := e.service.CreateMovie(e.ctx, name, "2021-10-22")
	if err != nil {
		t.Fatalf("create movie %q: %v", name, err)
	}
	return movie
}

func (e *testEnv) mustAddReview(t testing.TB, in ReviewInput) domain.Review {
	t.Helper()
	review, _, err := e.service.CreateReview(e.ctx, in)
	if err != nil {
		t.Fatalf("create review %+v: %v", in, err)
	}
	return review
}

func (e *testEnv) avgRating(t testing.TB, movieID int64) float64 {
	t.Helper()
	movie, err := e.repo.Movies.GetByID(e.ctx, movieID)
	if err != nil {
		t.Fatalf("get movie %d: %v", movieID, err)
	}
	return movie.AvgRating
}

func assertAvg(t testing.TB, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("avg_rating = %v, want %v", got, want)
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.RatingRecomputed
}

func (p *recordingPublisher) PublishRatingRecomputed(_ context.Context, event domain.RatingRecomputed) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// failingAggregator persists the new average and then fails, so the test
// can observe that both writes are rolled back.
type failingAggregator struct{}

func (failingAggregator) RecomputeAverage(ctx context.Context, repo *repository.Repository, movieID int64) (domain.RatingAggregate, error) {
	if _, err := (RatingAggregator{}).RecomputeAverage(ctx, repo, movieID); err != nil {
		return domain.RatingAggregate{}, err
	}
	return domain.RatingAggregate{}, errors.New("avg write failed")
}

func TestService_ReviewLifecycleScenario(t *testing.T) {
	publisher := &recordingPublisher{}
	env := newTestEnv(t, Options{Publisher: publisher})

	// 1. New movie starts at zero with no reviews.
	dune := env.mustCreateMovie(t, "Dune")
	if dune.AvgRating != 0 || len(dune.Reviews) != 0 {
		t.Fatalf("new movie = %+v, want zero average and no reviews", dune)
	}

	// 2. Blank reviewer becomes Anonymous; average follows the first rating.
	first, agg, err := env.service.CreateReview(env.ctx, ReviewInput{MovieName: "Dune", Rating: intPtr(8), Reviewer: "", Comments: "Great"})
	if err != nil {
		t.Fatalf("create first review: %v", err)
	}
	if first.Reviewer != domain.AnonymousReviewer {
		t.Fatalf("reviewer = %q, want Anonymous", first.Reviewer)
	}
	assertAvg(t, agg.Average, 8)
	assertAvg(t, env.avgRating(t, dune.ID), 8)

	// 3. Second review.
	second := env.mustAddReview(t, ReviewInput{MovieName: "Dune", Rating: intPtr(6), Comments: "OK"})
	assertAvg(t, env.avgRating(t, dune.ID), 7)

	// 4. Edit first review from 8 to 10.
	updated, agg, err := env.service.UpdateReview(env.ctx, first.ID, ReviewUpdate{Rating: intPtr(10)})
	if err != nil {
		t.Fatalf("update review: %v", err)
	}
	if updated.Comments != "Great" || updated.Reviewer != domain.AnonymousReviewer {
		t.Fatalf("unsupplied fields changed: %+v", updated)
	}
	assertAvg(t, agg.Average, 8)
	assertAvg(t, env.avgRating(t, dune.ID), 8)

	// 5. Delete the second review.
	agg, err = env.service.DeleteReview(env.ctx, second.ID)
	if err != nil {
		t.Fatalf("delete review: %v", err)
	}
	assertAvg(t, agg.Average, 10)
	assertAvg(t, env.avgRating(t, dune.ID), 10)

	// 6. Delete the remaining review.
	if _, err := env.service.DeleteReview(env.ctx, first.ID); err != nil {
		t.Fatalf("delete last review: %v", err)
	}
	assertAvg(t, env.avgRating(t, dune.ID), 0)

	// 7. Out-of-range rating is rejected and leaves the average alone.
	_, _, err = env.service.CreateReview(env.ctx, ReviewInput{MovieName: "Dune", Rating: intPtr(11), Comments: "Too good"})
	if !domain.IsValidation(err) {
		t.Fatalf("rating 11 error = %v, want ValidationError", err)
	}
	assertAvg(t, env.avgRating(t, dune.ID), 0)

	movie, err := env.service.GetMovie(env.ctx, dune.ID)
	if err != nil {
		t.Fatalf("get movie: %v", err)
	}
	if len(movie.Reviews) != 0 {
		t.Fatalf("reviews = %d, want 0", len(movie.Reviews))
	}

	if len(publisher.events) != 5 {
		t.Fatalf("published %d events, want 5", len(publisher.events))
	}
	last := publisher.events[len(publisher.events)-1]
	if last.Trigger != domain.TriggerReviewDeleted || last.ReviewCount != 0 || last.MovieID != dune.ID {
		t.Fatalf("last event = %+v", last)
	}
}

func TestService_CreateMovieDuplicateName(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.mustCreateMovie(t, "Arrival")

	_, err := env.service.CreateMovie(env.ctx, "Arrival", "2016-11-11")
	if !errors.Is(err, domain.ErrDuplicateName) {
		t.Fatalf("duplicate create error = %v, want ErrDuplicateName", err)
	}

	result, err := env.service.ListMovies(env.ctx, repository.MovieListFilters{})
	if err != nil {
		t.Fatalf("list movies: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("movies = %d, want 1", len(result.Items))
	}
}

func TestService_CreateMovieValidation(t *testing.T) {
	env := newTestEnv(t, Options{})
	if _, err := env.service.CreateMovie(env.ctx, "", "2020-01-01"); !domain.IsValidation(err) {
		t.Fatalf("missing name error = %v", err)
	}
	if _, err := env.service.CreateMovie(env.ctx, "Tenet", ""); !domain.IsValidation(err) {
		t.Fatalf("missing release date error = %v", err)
	}
}

func TestService_UpdateMovieKeepsAverage(t *testing.T) {
	env := newTestEnv(t, Options{})
	movie := env.mustCreateMovie(t, "Heat")
	env.mustAddReview(t, ReviewInput{MovieID: movie.ID, Rating: intPtr(9), Reviewer: "Vincent", Comments: "Classic"})

	updated, err := env.service.UpdateMovie(env.ctx, movie.ID, "Heat (1995)", "1995-12-15")
	if err != nil {
		t.Fatalf("update movie: %v", err)
	}
	if updated.Name != "Heat (1995)" || updated.ReleaseDate != "1995-12-15" {
		t.Fatalf("updated movie = %+v", updated)
	}
	assertAvg(t, updated.AvgRating, 9)
	if len(updated.Reviews) != 1 {
		t.Fatalf("reviews = %d, want 1", len(updated.Reviews))
	}

	if _, err := env.service.UpdateMovie(env.ctx, 99999, "Ghost", "2000-01-01"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("update missing movie error = %v, want ErrNotFound", err)
	}

	env.mustCreateMovie(t, "Ronin")
	if _, err := env.service.UpdateMovie(env.ctx, movie.ID, "Ronin", "1998-09-25"); !errors.Is(err, domain.ErrDuplicateName) {
		t.Fatalf("rename to existing name error = %v, want ErrDuplicateName", err)
	}
}

func TestService_DeleteMovieCascades(t *testing.T) {
	env := newTestEnv(t, Options{})
	movie := env.mustCreateMovie(t, "Alien")
	for i := 0; i < 3; i++ {
		env.mustAddReview(t, ReviewInput{MovieID: movie.ID, Rating: intPtr(i + 5), Comments: fmt.Sprintf("take %d", i)})
	}

	if err := env.service.DeleteMovie(env.ctx, movie.ID); err != nil {
		t.Fatalf("delete movie: %v", err)
	}

	ratings, err := env.repo.Reviews.Ratings(env.ctx, movie.ID)
	if err != nil {
		t.Fatalf("ratings: %v", err)
	}
	if len(ratings) != 0 {
		t.Fatalf("orphan reviews = %d, want 0", len(ratings))
	}

	if err := env.service.DeleteMovie(env.ctx, movie.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete error = %v, want ErrNotFound", err)
	}
	if _, err := env.service.GetMovie(env.ctx, movie.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get deleted movie error = %v, want ErrNotFound", err)
	}
}

func TestService_ReviewNotFoundPaths(t *testing.T) {
	env := newTestEnv(t, Options{})

	if _, _, err := env.service.CreateReview(env.ctx, ReviewInput{MovieName: "Nope", Rating: intPtr(5), Comments: "?"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("review for missing movie error = %v, want ErrNotFound", err)
	}
	if _, err := env.service.GetReview(env.ctx, 123); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get missing review error = %v", err)
	}
	if _, _, err := env.service.UpdateReview(env.ctx, 123, ReviewUpdate{Rating: intPtr(3)}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("update missing review error = %v", err)
	}
	if _, err := env.service.DeleteReview(env.ctx, 123); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("delete missing review error = %v", err)
	}
	if _, err := env.service.ListReviewsForMovie(env.ctx, 123); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("list reviews for missing movie error = %v", err)
	}
}

func TestService_UpdateReviewRejectsOutOfRange(t *testing.T) {
	env := newTestEnv(t, Options{})
	movie := env.mustCreateMovie(t, "Blade Runner")
	review := env.mustAddReview(t, ReviewInput{MovieID: movie.ID, Rating: intPtr(7), Comments: "Rain"})

	if _, _, err := env.service.UpdateReview(env.ctx, review.ID, ReviewUpdate{Rating: intPtr(-1)}); !domain.IsValidation(err) {
		t.Fatalf("update to -1 error = %v, want ValidationError", err)
	}

	stored, err := env.service.GetReview(env.ctx, review.ID)
	if err != nil {
		t.Fatalf("get review: %v", err)
	}
	if stored.Rating != 7 {
		t.Fatalf("rating = %d, want 7", stored.Rating)
	}
	assertAvg(t, env.avgRating(t, movie.ID), 7)
}

func TestService_AggregateFailureRollsBackReviewWrite(t *testing.T) {
	env := newTestEnv(t, Options{})
	movie := env.mustCreateMovie(t, "Solaris")
	kept := env.mustAddReview(t, ReviewInput{MovieID: movie.ID, Rating: intPtr(4), Comments: "Slow"})

	failing := New(env.store, env.repo, Options{Aggregator: failingAggregator{}})

	_, _, err := failing.CreateReview(env.ctx, ReviewInput{MovieID: movie.ID, Rating: intPtr(10), Comments: "Masterpiece"})
	var storeErr *domain.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("create error = %v, want StoreError", err)
	}

	if _, _, err := failing.UpdateReview(env.ctx, kept.ID, ReviewUpdate{Rating: intPtr(0)}); !errors.As(err, &storeErr) {
		t.Fatalf("update error = %v, want StoreError", err)
	}
	if _, err := failing.DeleteReview(env.ctx, kept.ID); !errors.As(err, &storeErr) {
		t.Fatalf("delete error = %v, want StoreError", err)
	}

	reviews, err := env.repo.Reviews.ListByMovie(env.ctx, movie.ID)
	if err != nil {
		t.Fatalf("list reviews: %v", err)
	}
	if len(reviews) != 1 || reviews[0].ID != kept.ID || reviews[0].Rating != 4 {
		t.Fatalf("reviews after failed mutations = %+v, want only the original", reviews)
	}
	assertAvg(t, env.avgRating(t, movie.ID), 4)
}

func TestService_ListMoviesNestsReviewsInOrder(t *testing.T) {
	env := newTestEnv(t, Options{})
	a := env.mustCreateMovie(t, "Amelie")
	b := env.mustCreateMovie(t, "Brazil")
	r1 := env.mustAddReview(t, ReviewInput{MovieID: a.ID, Rating: intPtr(9), Comments: "one"})
	r2 := env.mustAddReview(t, ReviewInput{MovieID: a.ID, Rating: intPtr(7), Comments: "two"})

	result, err := env.service.ListMovies(env.ctx, repository.MovieListFilters{})
	if err != nil {
		t.Fatalf("list movies: %v", err)
	}
	if len(result.Items) != 2 || result.Items[0].ID != a.ID || result.Items[1].ID != b.ID {
		t.Fatalf("movies out of insertion order: %+v", result.Items)
	}
	got := result.Items[0].Reviews
	if len(got) != 2 || got[0].ID != r1.ID || got[1].ID != r2.ID {
		t.Fatalf("reviews out of insertion order: %+v", got)
	}
	if result.Items[1].Reviews == nil || len(result.Items[1].Reviews) != 0 {
		t.Fatalf("movie without reviews should carry an empty slice")
	}
	assertAvg(t, result.Items[0].AvgRating, 8)
}

func TestService_ConcurrentReviewsKeepAverageExact(t *testing.T) {
	env := newTestEnv(t, Options{})
	movie := env.mustCreateMovie(t, "Concurrent Movie")

	const workers = 12
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(rating int) {
			defer wg.Done()
			_, _, err := env.service.CreateReview(env.ctx, ReviewInput{
				MovieID:  movie.ID,
				Rating:   intPtr(rating),
				Reviewer: fmt.Sprintf("user-%d", rating),
				Comments: "parallel",
			})
			if err != nil {
				t.Errorf("create review %d: %v", rating, err)
			}
		}(i % 11)
	}
	wg.Wait()

	ratings, err := env.repo.Reviews.Ratings(env.ctx, movie.ID)
	if err != nil {
		t.Fatalf("ratings: %v", err)
	}
	if len(ratings) != workers {
		t.Fatalf("reviews = %d, want %d", len(ratings), workers)
	}
	assertAvg(t, env.avgRating(t, movie.ID), AverageRating(ratings))
}

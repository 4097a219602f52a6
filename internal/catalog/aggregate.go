package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MohakGupta21/MovieReviewAPIs/internal/domain"
	"github.com/MohakGupta21/MovieReviewAPIs/internal/repository"
)

// Aggregator recomputes and persists one movie's average rating. It runs on
// the repositories of the caller's transaction, so a failure here rolls back
// the review write that triggered it.
type Aggregator interface {
	RecomputeAverage(ctx context.Context, repo *repository.Repository, movieID int64) (domain.RatingAggregate, error)
}

// RatingAggregator recomputes the average from the full review set.
type RatingAggregator struct{}

// RecomputeAverage implements Aggregator.
func (RatingAggregator) RecomputeAverage(ctx context.Context, repo *repository.Repository, movieID int64) (domain.RatingAggregate, error) {
	ratings, err := repo.Reviews.Ratings(ctx, movieID)
	if err != nil {
		return domain.RatingAggregate{}, fmt.Errorf("load ratings: %w", err)
	}

	agg := domain.RatingAggregate{
		Average: AverageRating(ratings),
		Count:   int64(len(ratings)),
	}
	if err := repo.Movies.SetAvgRating(ctx, movieID, agg.Average); err != nil {
		return domain.RatingAggregate{}, fmt.Errorf("store avg rating: %w", err)
	}
	return agg, nil
}

// AverageRating returns the mean of ratings rounded half away from zero to
// two decimal places, or 0 for an empty set.
func AverageRating(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, r := range ratings {
		sum = sum.Add(decimal.NewFromInt(int64(r)))
	}
	return sum.DivRound(decimal.NewFromInt(int64(len(ratings))), 2).InexactFloat64()
}

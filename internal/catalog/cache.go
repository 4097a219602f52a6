package catalog

import (
	"context"

	"github.com/MohakGupta21/MovieReviewAPIs/internal/domain"
)

// MovieCache stores fully assembled movies (average and reviews together).
//
// Generation must be read before the database load whose result is handed
// to SetMovie. SetMovie refuses the write when InvalidateMovie ran in
// between, so a snapshot older than a committed write never gets cached.
type MovieCache interface {
	GetMovie(ctx context.Context, id int64) (domain.Movie, bool, error)
	Generation(ctx context.Context, id int64) (int64, error)
	SetMovie(ctx context.Context, movie domain.Movie, gen int64) (bool, error)
	InvalidateMovie(ctx context.Context, id int64) error
}

// RatingPublisher announces committed average changes.
type RatingPublisher interface {
	PublishRatingRecomputed(ctx context.Context, event domain.RatingRecomputed) error
}

type noopCache struct{}

func (noopCache) GetMovie(context.Context, int64) (domain.Movie, bool, error) {
	return domain.Movie{}, false, nil
}
func (noopCache) Generation(context.Context, int64) (int64, error) { return 0, nil }
func (noopCache) SetMovie(context.Context, domain.Movie, int64) (bool, error) {
	return false, nil
}
func (noopCache) InvalidateMovie(context.Context, int64) error { return nil }

type noopPublisher struct{}

func (noopPublisher) PublishRatingRecomputed(context.Context, domain.RatingRecomputed) error {
	return nil
}

package domain

import "time"

// AnonymousReviewer is stored when a review is created without a reviewer.
const AnonymousReviewer = "Anonymous"

// Rating bounds, inclusive.
const (
	MinRating = 0
	MaxRating = 10
)

// Review represents a single review left on a movie.
type Review struct {
	ID        int64
	MovieID   int64
	Reviewer  string
	Rating    int
	Comments  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidRating reports whether r lies within [MinRating, MaxRating].
func ValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}

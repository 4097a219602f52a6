package domain

import "time"

// RatingAggregate provides the rounded average and count for a movie's reviews.
type RatingAggregate struct {
	Average float64
	Count   int64
}

// Review mutations that trigger a recompute.
const (
	TriggerReviewCreated = "review.created"
	TriggerReviewUpdated = "review.updated"
	TriggerReviewDeleted = "review.deleted"
)

// RatingRecomputed describes a committed change to a movie's average rating.
type RatingRecomputed struct {
	MovieID     int64     `json:"movie_id"`
	AvgRating   float64   `json:"avg_rating"`
	ReviewCount int64     `json:"review_count"`
	Trigger     string    `json:"trigger"`
	ReviewID    int64     `json:"review_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

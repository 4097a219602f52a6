package domain

import "time"

// Movie represents the canonical movie entity in the database/service.
type Movie struct {
	ID          int64
	Name        string
	ReleaseDate string
	AvgRating   float64
	Reviews     []Review
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

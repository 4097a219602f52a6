package catalog

import (
	"fmt"
	"strings"

	"github.com/MohakGupta21/MovieReviewAPIs/internal/domain"
	"github.com/MohakGupta21/MovieReviewAPIs/internal/repository"
)

var ratingRangeMessage = fmt.Sprintf("must be between %d and %d", domain.MinRating, domain.MaxRating)

func validateMovieFields(name, releaseDate string) (string, string, error) {
	name = strings.TrimSpace(name)
	releaseDate = strings.TrimSpace(releaseDate)
	if name == "" {
		return "", "", domain.NewValidationError("name", "is required")
	}
	if releaseDate == "" {
		return "", "", domain.NewValidationError("release_date", "is required")
	}
	return name, releaseDate, nil
}

func validateReviewInput(in ReviewInput) (repository.ReviewCreateParams, error) {
	if in.Rating == nil {
		return repository.ReviewCreateParams{}, domain.NewValidationError("rating", "is required")
	}
	if !domain.ValidRating(*in.Rating) {
		return repository.ReviewCreateParams{}, domain.NewValidationError("rating", ratingRangeMessage)
	}
	if in.MovieID <= 0 && strings.TrimSpace(in.MovieName) == "" {
		return repository.ReviewCreateParams{}, domain.NewValidationError("movie", "is required")
	}
	comments := strings.TrimSpace(in.Comments)
	if comments == "" {
		return repository.ReviewCreateParams{}, domain.NewValidationError("comments", "is required")
	}
	return repository.ReviewCreateParams{
		Reviewer: normalizeReviewer(in.Reviewer),
		Rating:   *in.Rating,
		Comments: comments,
	}, nil
}

func validateReviewUpdate(in ReviewUpdate) (repository.ReviewUpdateParams, error) {
	params := repository.ReviewUpdateParams{Rating: in.Rating}
	if in.Rating != nil && !domain.ValidRating(*in.Rating) {
		return repository.ReviewUpdateParams{}, domain.NewValidationError("rating", ratingRangeMessage)
	}
	if in.Comments != nil {
		comments := strings.TrimSpace(*in.Comments)
		if comments == "" {
			return repository.ReviewUpdateParams{}, domain.NewValidationError("comments", "cannot be empty")
		}
		params.Comments = &comments
	}
	if in.Reviewer != nil {
		reviewer := normalizeReviewer(*in.Reviewer)
		params.Reviewer = &reviewer
	}
	return params, nil
}

func normalizeReviewer(reviewer string) string {
	if r := strings.TrimSpace(reviewer); r != "" {
		return r
	}
	return domain.AnonymousReviewer
}

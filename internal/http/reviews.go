package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/MohakGupta21/MovieReviewAPIs/internal/catalog"
	"github.com/MohakGupta21/MovieReviewAPIs/internal/domain"
)

var errRatingNotInteger = errors.New("rating must be an integer")

// ratingValue accepts a rating sent either as a JSON integer or as a
// numeric string ("7"). Fractional values are rejected.
type ratingValue int

func (v *ratingValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(raw))
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil || math.Trunc(f) != f || math.Abs(f) > math.MaxInt32 {
		return errRatingNotInteger
	}
	*v = ratingValue(int(f))
	return nil
}

func (v *ratingValue) intPtr() *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}

type reviewCreateRequest struct {
	Movie    string       `json:"movie"`
	MovieID  int64        `json:"movie_id"`
	Rating   *ratingValue `json:"rating"`
	Reviewer *string      `json:"reviewer"`
	Comments string       `json:"comments"`
}

type reviewUpdateRequest struct {
	Rating   *ratingValue `json:"rating"`
	Comments *string      `json:"comments"`
	Reviewer *string      `json:"reviewer"`
}

type reviewResponse struct {
	ID       int64  `json:"id"`
	Reviewer string `json:"reviewer"`
	Rating   int    `json:"rating"`
	Comments string `json:"comments"`
}

type reviewMutationResponse struct {
	Message      string          `json:"message"`
	NewAvgRating *float64        `json:"new_avg_rating,omitempty"`
	Review       *reviewResponse `json:"review,omitempty"`
}

type movieReviewsResponse struct {
	Movie   string           `json:"movie"`
	Reviews []reviewResponse `json:"reviews"`
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	var req reviewCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondReviewDecodeError(w, err)
		return
	}

	in := catalog.ReviewInput{
		MovieID:   req.MovieID,
		MovieName: req.Movie,
		Rating:    req.Rating.intPtr(),
		Comments:  req.Comments,
	}
	if req.Reviewer != nil {
		in.Reviewer = *req.Reviewer
	}

	review, agg, err := s.catalog.CreateReview(r.Context(), in)
	if err != nil {
		s.respondCatalogError(w, "create review", err)
		return
	}

	resp := toReviewResponse(review)
	avg := agg.Average
	w.Header().Set("Location", fmt.Sprintf("/reviews/%d", review.ID))
	s.respondJSON(w, http.StatusCreated, reviewMutationResponse{
		Message:      "Review added successfully",
		NewAvgRating: &avg,
		Review:       &resp,
	})
}

func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		s.handleNotFound(w, r)
		return
	}

	review, err := s.catalog.GetReview(r.Context(), id)
	if err != nil {
		s.respondCatalogError(w, "fetch review", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toReviewResponse(review))
}

func (s *Server) handleListReviewsForMovie(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		s.handleNotFound(w, r)
		return
	}

	movie, err := s.catalog.ListReviewsForMovie(r.Context(), id)
	if err != nil {
		s.respondCatalogError(w, "list reviews", err)
		return
	}

	resp := movieReviewsResponse{Movie: movie.Name, Reviews: make([]reviewResponse, 0, len(movie.Reviews))}
	for _, review := range movie.Reviews {
		resp.Reviews = append(resp.Reviews, toReviewResponse(review))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateReview(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		s.handleNotFound(w, r)
		return
	}

	var req reviewUpdateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondReviewDecodeError(w, err)
		return
	}

	review, agg, err := s.catalog.UpdateReview(r.Context(), id, catalog.ReviewUpdate{
		Rating:   req.Rating.intPtr(),
		Comments: req.Comments,
		Reviewer: req.Reviewer,
	})
	if err != nil {
		s.respondCatalogError(w, "update review", err)
		return
	}

	resp := toReviewResponse(review)
	avg := agg.Average
	s.respondJSON(w, http.StatusOK, reviewMutationResponse{
		Message:      "Review updated successfully",
		NewAvgRating: &avg,
		Review:       &resp,
	})
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		s.handleNotFound(w, r)
		return
	}

	agg, err := s.catalog.DeleteReview(r.Context(), id)
	if err != nil {
		s.respondCatalogError(w, "delete review", err)
		return
	}

	avg := agg.Average
	s.respondJSON(w, http.StatusOK, reviewMutationResponse{
		Message:      "Review deleted successfully",
		NewAvgRating: &avg,
	})
}

// respondReviewDecodeError reports a bad rating value as a validation
// failure; everything else is a plain decode error.
func (s *Server) respondReviewDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errRatingNotInteger) {
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "rating: must be an integer between 0 and 10")
		return
	}
	s.respondDecodeError(w, err)
}

func toReviewResponse(review domain.Review) reviewResponse {
	return reviewResponse{
		ID:       review.ID,
		Reviewer: review.Reviewer,
		Rating:   review.Rating,
		Comments: review.Comments,
	}
}

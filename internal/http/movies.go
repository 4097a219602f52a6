package httpserver

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/MohakGupta21/MovieReviewAPIs/internal/domain"
	"github.com/MohakGupta21/MovieReviewAPIs/internal/repository"
)

type movieRequest struct {
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
}

type movieResponse struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	ReleaseDate string           `json:"release_date"`
	AvgRating   float64          `json:"avg_rating"`
	Reviews     []reviewResponse `json:"reviews"`
}

type movieMutationResponse struct {
	Message string         `json:"message"`
	Movie   *movieResponse `json:"movie,omitempty"`
}

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	filters, err := buildMovieFilters(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	result, err := s.catalog.ListMovies(r.Context(), filters)
	if err != nil {
		s.respondCatalogError(w, "list movies", err)
		return
	}

	items := make([]movieResponse, 0, len(result.Items))
	for _, movie := range result.Items {
		items = append(items, toMovieResponse(movie))
	}
	if result.NextCursor != nil {
		w.Header().Set("X-Next-Cursor", *result.NextCursor)
	}
	s.respondJSON(w, http.StatusOK, items)
}

func buildMovieFilters(query url.Values) (repository.MovieListFilters, error) {
	var filters repository.MovieListFilters

	if q := strings.TrimSpace(query.Get("q")); q != "" {
		filters.Query = &q
	}
	if val := strings.TrimSpace(query.Get("limit")); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil || limit < 0 {
			return filters, fmt.Errorf("invalid limit value")
		}
		filters.Limit = limit
	}
	if val := strings.TrimSpace(query.Get("cursor")); val != "" {
		cursor, err := repository.DecodeCursor(val)
		if err != nil {
			return filters, fmt.Errorf("invalid cursor")
		}
		filters.Cursor = cursor
	}
	return filters, nil
}

func (s *Server) handleCreateMovie(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}

	var req movieRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	movie, err := s.catalog.CreateMovie(r.Context(), req.Name, req.ReleaseDate)
	if err != nil {
		s.respondMovieWriteError(w, "create movie", err)
		return
	}

	resp := toMovieResponse(movie)
	w.Header().Set("Location", fmt.Sprintf("/movies/%d", movie.ID))
	s.respondJSON(w, http.StatusCreated, movieMutationResponse{Message: "movie added", Movie: &resp})
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		s.handleNotFound(w, r)
		return
	}

	movie, err := s.catalog.GetMovie(r.Context(), id)
	if err != nil {
		s.respondCatalogError(w, "fetch movie", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toMovieResponse(movie))
}

func (s *Server) handleUpdateMovie(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		s.handleNotFound(w, r)
		return
	}

	var req movieRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	movie, err := s.catalog.UpdateMovie(r.Context(), id, req.Name, req.ReleaseDate)
	if err != nil {
		s.respondMovieWriteError(w, "update movie", err)
		return
	}

	resp := toMovieResponse(movie)
	s.respondJSON(w, http.StatusOK, movieMutationResponse{Message: "Movie updated successfully", Movie: &resp})
}

// handleUpdateMovieOptions answers bare OPTIONS probes; CORS preflights are
// handled by the cors middleware before reaching here.
func (s *Server) handleUpdateMovieOptions(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, movieMutationResponse{Message: "end_reached"})
}

func (s *Server) handleDeleteMovie(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		s.handleNotFound(w, r)
		return
	}

	if err := s.catalog.DeleteMovie(r.Context(), id); err != nil {
		s.respondCatalogError(w, "delete movie", err)
		return
	}
	s.respondJSON(w, http.StatusOK, movieMutationResponse{Message: "movie deleted"})
}

func toMovieResponse(movie domain.Movie) movieResponse {
	resp := movieResponse{
		ID:          movie.ID,
		Name:        movie.Name,
		ReleaseDate: movie.ReleaseDate,
		AvgRating:   movie.AvgRating,
		Reviews:     make([]reviewResponse, 0, len(movie.Reviews)),
	}
	for _, review := range movie.Reviews {
		resp.Reviews = append(resp.Reviews, toReviewResponse(review))
	}
	return resp
}

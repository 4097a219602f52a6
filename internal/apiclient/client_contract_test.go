package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/MohakGupta21/MovieReviewAPIs/internal/logger"
)

func TestClientAgainstStub(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/movies", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodPost:
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["name"] == "Dup" {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"code":"DUPLICATE_NAME","message":"exists"}`))
				return
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"message":"movie added","movie":{"id":1,"name":"` + body["name"] + `","release_date":"2021","avg_rating":0,"reviews":[]}}`))
		default:
			_, _ = w.Write([]byte(`[{"id":1,"name":"Dune","release_date":"2021","avg_rating":8,"reviews":[]}]`))
		}
	})
	mux.HandleFunc("/movies/404", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"NOT_FOUND","message":"Resource not found"}`))
	})
	mux.HandleFunc("/reviews", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"message":"Review added successfully","new_avg_rating":8,"review":{"id":5,"reviewer":"Anonymous","rating":8,"comments":"Great"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := New(srv.URL, "secret", 2*time.Second, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	movie, err := client.CreateMovie(ctx, "Dune", "2021")
	if err != nil || movie.ID != 1 || movie.Name != "Dune" {
		t.Fatalf("CreateMovie = %+v, %v", movie, err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("Authorization = %q", gotAuth)
	}

	_, err = client.CreateMovie(ctx, "Dup", "2021")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "DUPLICATE_NAME" || apiErr.Status != http.StatusInternalServerError {
		t.Fatalf("duplicate error = %v", err)
	}

	movies, err := client.ListMovies(ctx, "Dune")
	if err != nil || len(movies) != 1 || movies[0].AvgRating != 8 {
		t.Fatalf("ListMovies = %+v, %v", movies, err)
	}

	if _, err := client.GetMovie(ctx, 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetMovie missing error = %v, want ErrNotFound", err)
	}

	review, avg, err := client.CreateReview(ctx, NewReview{Movie: "Dune", Rating: 8, Comments: "Great"})
	if err != nil || review.ID != 5 || avg != 8 {
		t.Fatalf("CreateReview = %+v, %v, %v", review, avg, err)
	}
}

func TestNewRejectsRelativeURL(t *testing.T) {
	if _, err := New("localhost:5001", "", time.Second, nil); err == nil {
		t.Fatalf("expected error for URL without scheme")
	}
}

// TestClientSmoke runs against a live server when MOVIES_API_URL is set.
func TestClientSmoke(t *testing.T) {
	baseURL := os.Getenv("MOVIES_API_URL")
	if baseURL == "" {
		t.Skip("MOVIES_API_URL not provided")
	}
	client, err := New(baseURL, os.Getenv("AUTH_TOKEN"), 3*time.Second, logger.Nop())
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.ListMovies(ctx, ""); err != nil {
		t.Fatalf("list movies: %v", err)
	}
}

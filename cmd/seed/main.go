package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/MohakGupta21/MovieReviewAPIs/internal/apiclient"
	"github.com/MohakGupta21/MovieReviewAPIs/internal/logger"
)

type seedReview struct {
	Reviewer string `json:"reviewer"`
	Rating   *int   `json:"rating"`
	Comments string `json:"comments"`
}

type seedMovie struct {
	Name        string       `json:"name"`
	ReleaseDate string       `json:"release_date"`
	Reviews     []seedReview `json:"reviews"`
}

func main() {
	_ = godotenv.Load()

	var (
		apiURL  = flag.String("api", envOr("MOVIES_API_URL", "http://localhost:5001"), "base URL of the movie reviews API")
		data    = flag.String("data", "seed-movies.json", "path to seed data file")
		token   = flag.String("token", os.Getenv("AUTH_TOKEN"), "bearer token for movie writes")
		timeout = flag.Duration("timeout", 5*time.Second, "per-request timeout")
	)
	flag.Parse()

	log, err := logger.New(os.Getenv("APP_ENV"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	movies, err := loadSeed(*data)
	if err != nil {
		log.Fatalf("load seed data: %v", err)
	}

	client, err := apiclient.New(*apiURL, *token, *timeout, log)
	if err != nil {
		log.Fatalf("api client: %v", err)
	}

	ctx := context.Background()
	created, reviews := 0, 0
	for _, m := range movies {
		movie, err := client.CreateMovie(ctx, m.Name, m.ReleaseDate)
		var apiErr *apiclient.APIError
		switch {
		case errors.As(err, &apiErr) && apiErr.Code == "DUPLICATE_NAME":
			log.Info("movie already present, skipping", "name", m.Name)
			continue
		case err != nil:
			log.Fatalf("create movie %q: %v", m.Name, err)
		}
		created++

		var avg float64
		for _, r := range m.Reviews {
			_, avg, err = client.CreateReview(ctx, apiclient.NewReview{
				MovieID:  movie.ID,
				Rating:   *r.Rating,
				Reviewer: r.Reviewer,
				Comments: r.Comments,
			})
			if err != nil {
				log.Fatalf("add review to %q: %v", m.Name, err)
			}
			reviews++
		}
		log.Info("seeded movie", "id", movie.ID, "name", movie.Name, "reviews", len(m.Reviews), "avg_rating", avg)
	}
	log.Info("seed complete", "movies", created, "reviews", reviews)
}

func loadSeed(path string) ([]seedMovie, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var movies []seedMovie
	if err := json.Unmarshal(file, &movies); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, m := range movies {
		if m.Name == "" {
			return nil, fmt.Errorf("entry %d: name is required", i)
		}
		for j, r := range m.Reviews {
			if r.Rating == nil {
				return nil, fmt.Errorf("entry %d (%s) review %d: rating is required", i, m.Name, j)
			}
		}
	}
	return movies, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

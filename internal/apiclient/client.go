// Package apiclient is a small typed client for the movie reviews REST API.
// It is used by the seed tool and by smoke tests against a running server.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MohakGupta21/MovieReviewAPIs/internal/logger"
)

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("apiclient: not found")

// APIError carries a non-2xx response's error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("apiclient: %d %s: %s", e.Status, e.Code, e.Message)
}

type Review struct {
	ID       int64  `json:"id"`
	Reviewer string `json:"reviewer"`
	Rating   int    `json:"rating"`
	Comments string `json:"comments"`
}

type Movie struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	ReleaseDate string   `json:"release_date"`
	AvgRating   float64  `json:"avg_rating"`
	Reviews     []Review `json:"reviews"`
}

// NewReview is the payload of CreateReview. Movie is the movie name.
type NewReview struct {
	Movie    string `json:"movie,omitempty"`
	MovieID  int64  `json:"movie_id,omitempty"`
	Rating   int    `json:"rating"`
	Reviewer string `json:"reviewer,omitempty"`
	Comments string `json:"comments"`
}

// Client talks to the API over HTTP.
type Client struct {
	baseURL *url.URL
	token   string
	client  *http.Client
	logger  *logger.Logger
}

// New constructs a client for baseURL. token, when set, is sent as a
// bearer token on every request.
func New(baseURL, token string, timeout time.Duration, log *logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.Nop()
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse api url: %q is not absolute", baseURL)
	}
	return &Client{
		baseURL: parsed,
		token:   token,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		logger: log,
	}, nil
}

// CreateMovie posts a new movie and returns the stored record.
func (c *Client) CreateMovie(ctx context.Context, name, releaseDate string) (Movie, error) {
	var out struct {
		Movie *Movie `json:"movie"`
	}
	body := map[string]string{"name": name, "release_date": releaseDate}
	if err := c.do(ctx, http.MethodPost, "/movies", nil, body, &out); err != nil {
		return Movie{}, err
	}
	if out.Movie == nil {
		return Movie{}, fmt.Errorf("apiclient: create movie response has no movie")
	}
	return *out.Movie, nil
}

// GetMovie fetches one movie with its reviews.
func (c *Client) GetMovie(ctx context.Context, id int64) (Movie, error) {
	var out Movie
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/movies/%d", id), nil, nil, &out); err != nil {
		return Movie{}, err
	}
	return out, nil
}

// ListMovies returns every movie, optionally filtered by a name substring.
func (c *Client) ListMovies(ctx context.Context, query string) ([]Movie, error) {
	q := url.Values{}
	if query != "" {
		q.Set("q", query)
	}
	var out []Movie
	if err := c.do(ctx, http.MethodGet, "/movies", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateReview posts a review and returns it with the movie's new average.
func (c *Client) CreateReview(ctx context.Context, in NewReview) (Review, float64, error) {
	var out struct {
		NewAvgRating float64 `json:"new_avg_rating"`
		Review       *Review `json:"review"`
	}
	if err := c.do(ctx, http.MethodPost, "/reviews", nil, in, &out); err != nil {
		return Review{}, 0, err
	}
	if out.Review == nil {
		return Review{}, 0, fmt.Errorf("apiclient: create review response has no review")
	}
	return *out.Review, out.NewAvgRating, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	rel := &url.URL{Path: path}
	if len(query) > 0 {
		rel.RawQuery = query.Encode()
	}
	endpoint := c.baseURL.ResolveReference(rel)

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s %s response: %w", method, path, err)
		}
		return nil
	}

	apiErr := decodeError(resp.StatusCode, resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
	}
	c.logger.Warn("apiclient: unexpected status", "method", method, "path", path, "status", resp.StatusCode, "code", apiErr.Code)
	return apiErr
}

func decodeError(status int, r io.Reader) *APIError {
	apiErr := &APIError{Status: status}
	raw, _ := io.ReadAll(io.LimitReader(r, 64<<10))
	var envelope struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		apiErr.Code = envelope.Code
		apiErr.Message = envelope.Message
	}
	if apiErr.Code == "" {
		apiErr.Code = strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

// Package cache keeps assembled movie payloads in Redis so repeated reads of
// the same movie skip Postgres. Entries are written after a committed read and
// dropped whenever the movie or one of its reviews changes.
//
// Every movie also has a generation counter under "<prefix>:movie:<id>:gen".
// Invalidation bumps it before deleting the entry, and a fill only lands when
// the counter still holds the value read before the database load. A reader
// that loaded a snapshot older than a committed write therefore cannot put it
// back into the cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MohakGupta21/MovieReviewAPIs/internal/domain"
	"github.com/MohakGupta21/MovieReviewAPIs/internal/logger"
)

const defaultKeyPrefix = "movies:v1"

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
	Logger   *logger.Logger
}

// NewRedisClient dials Redis and pings it with a short timeout. It returns
// nil when the server is unreachable so callers can run without a cache.
func NewRedisClient(opts Options) *redis.Client {
	if opts.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		if opts.Logger != nil {
			opts.Logger.Warn("redis unavailable, movie cache disabled", "addr", opts.Addr, "error", err)
		}
		_ = client.Close()
		return nil
	}
	return client
}

// MovieCache stores movies as JSON under "<prefix>:movie:<id>".
type MovieCache struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
}

// NewMovieCache wraps rdb. A zero TTL falls back to thirty seconds.
func NewMovieCache(rdb redis.Cmdable, opts Options) *MovieCache {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &MovieCache{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (c *MovieCache) key(id int64) string {
	return fmt.Sprintf("%s:movie:%d", c.prefix, id)
}

func (c *MovieCache) genKey(id int64) string {
	return c.key(id) + ":gen"
}

// setIfGeneration stores ARGV[2] under KEYS[1] for ARGV[3] ms, but only when
// the generation at KEYS[2] (absent means 0) equals ARGV[1].
var setIfGeneration = redis.NewScript(`
local cur = redis.call('GET', KEYS[2])
if not cur then cur = '0' end
if cur ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// GetMovie reports a miss (false, nil) when the key is absent.
func (c *MovieCache) GetMovie(ctx context.Context, id int64) (domain.Movie, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Movie{}, false, nil
	}
	if err != nil {
		return domain.Movie{}, false, err
	}
	movie, err := decodeMovie(raw)
	if err != nil {
		// A corrupt entry is treated as a miss and evicted.
		_ = c.rdb.Del(ctx, c.key(id)).Err()
		return domain.Movie{}, false, nil
	}
	return movie, true, nil
}

// Generation returns the current invalidation counter for id.
func (c *MovieCache) Generation(ctx context.Context, id int64) (int64, error) {
	gen, err := c.rdb.Get(ctx, c.genKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// SetMovie stores movie with the configured TTL when the movie's generation
// still equals gen. It reports whether the entry was written.
func (c *MovieCache) SetMovie(ctx context.Context, movie domain.Movie, gen int64) (bool, error) {
	raw, err := encodeMovie(movie)
	if err != nil {
		return false, err
	}
	keys := []string{c.key(movie.ID), c.genKey(movie.ID)}
	stored, err := setIfGeneration.Run(ctx, c.rdb, keys,
		strconv.FormatInt(gen, 10), raw, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// InvalidateMovie bumps the generation for id, then drops the cached entry.
// The order matters: a fill racing with this call either sees the new
// generation and is refused, or lands before the delete and is removed.
// The generation key never expires.
func (c *MovieCache) InvalidateMovie(ctx context.Context, id int64) error {
	if err := c.rdb.Incr(ctx, c.genKey(id)).Err(); err != nil {
		return err
	}
	return c.rdb.Del(ctx, c.key(id)).Err()
}

type cachedReview struct {
	ID        int64     `json:"id"`
	MovieID   int64     `json:"movie_id"`
	Reviewer  string    `json:"reviewer"`
	Rating    int       `json:"rating"`
	Comments  string    `json:"comments"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type cachedMovie struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	ReleaseDate string         `json:"release_date"`
	AvgRating   float64        `json:"avg_rating"`
	Reviews     []cachedReview `json:"reviews"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func encodeMovie(m domain.Movie) ([]byte, error) {
	payload := cachedMovie{
		ID:          m.ID,
		Name:        m.Name,
		ReleaseDate: m.ReleaseDate,
		AvgRating:   m.AvgRating,
		Reviews:     make([]cachedReview, 0, len(m.Reviews)),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	for _, r := range m.Reviews {
		payload.Reviews = append(payload.Reviews, cachedReview(r))
	}
	return json.Marshal(payload)
}

func decodeMovie(raw []byte) (domain.Movie, error) {
	var payload cachedMovie
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.Movie{}, err
	}
	if payload.ID <= 0 {
		return domain.Movie{}, fmt.Errorf("cached movie has no id")
	}
	movie := domain.Movie{
		ID:          payload.ID,
		Name:        payload.Name,
		ReleaseDate: payload.ReleaseDate,
		AvgRating:   payload.AvgRating,
		Reviews:     make([]domain.Review, 0, len(payload.Reviews)),
		CreatedAt:   payload.CreatedAt,
		UpdatedAt:   payload.UpdatedAt,
	}
	for _, r := range payload.Reviews {
		movie.Reviews = append(movie.Reviews, domain.Review(r))
	}
	return movie, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MohakGupta21/MovieReviewAPIs/internal/cache"
	"github.com/MohakGupta21/MovieReviewAPIs/internal/catalog"
	"github.com/MohakGupta21/MovieReviewAPIs/internal/config"
	"github.com/MohakGupta21/MovieReviewAPIs/internal/events"
	httpserver "github.com/MohakGupta21/MovieReviewAPIs/internal/http"
	"github.com/MohakGupta21/MovieReviewAPIs/internal/logger"
	"github.com/MohakGupta21/MovieReviewAPIs/internal/observability"
	"github.com/MohakGupta21/MovieReviewAPIs/internal/repository"
	"github.com/MohakGupta21/MovieReviewAPIs/internal/store"
)

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	log, err := logger.New(os.Getenv("APP_ENV"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Error("server exited with error", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	shutdownTracing := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.OtelEnabled,
		ServiceName: "movie-reviews-api",
		Environment: cfg.Env,
		Endpoint:    cfg.OtelEndpoint,
	})
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("otel shutdown failed", "error", err)
		}
	}()

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	st, err := store.New(dbCtx, cfg.DBURL, store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 log,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer st.Close()

	if cfg.DBAutoMigrate {
		if err := st.Migrate(dbCtx); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	opts := catalog.Options{Logger: log.With("component", "catalog")}

	cacheOpts := cache.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      time.Duration(cfg.CacheTTLSecs) * time.Second,
		Logger:   log,
	}
	if rdb := cache.NewRedisClient(cacheOpts); rdb != nil {
		defer rdb.Close()
		opts.Cache = cache.NewMovieCache(rdb, cacheOpts)
		log.Info("movie cache enabled", "addr", cfg.RedisAddr, "ttl_secs", cfg.CacheTTLSecs)
	}

	if cfg.AMQPURL != "" {
		publisher, err := events.NewPublisher(cfg.AMQPURL, cfg.RatingEventsQueue, log)
		if err != nil {
			return fmt.Errorf("init rating events: %w", err)
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Warn("close rating events publisher", "error", err)
			}
		}()
		opts.Publisher = publisher
		log.Info("rating events enabled", "queue", cfg.RatingEventsQueue)
	}

	svc := catalog.New(st, repository.New(st), opts)
	server := httpserver.New(cfg, st, svc, log.With("component", "http"))

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn("graceful shutdown error", "error", err)
	}
	return nil
}

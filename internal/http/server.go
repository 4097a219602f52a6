package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MohakGupta21/MovieReviewAPIs/internal/catalog"
	"github.com/MohakGupta21/MovieReviewAPIs/internal/config"
	"github.com/MohakGupta21/MovieReviewAPIs/internal/logger"
	"github.com/MohakGupta21/MovieReviewAPIs/internal/store"
)

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg     config.Config
	store   *store.Store
	catalog *catalog.Service
	logger  *logger.Logger
	router  chi.Router
	httpSrv *http.Server
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, st *store.Store, svc *catalog.Service, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(tracing())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Location", "X-Next-Cursor"},
		MaxAge:         300,
	}))

	s := &Server{
		cfg:     cfg,
		store:   st,
		catalog: svc,
		logger:  log,
		router:  r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.NotFound(s.handleNotFound)
	s.router.MethodNotAllowed(s.handleMethodNotAllowed)

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Route("/movies", func(r chi.Router) {
		r.Get("/", s.handleListMovies)
		r.Post("/", s.handleCreateMovie)
		r.Route("/{id:[0-9]+}", func(r chi.Router) {
			r.Get("/", s.handleGetMovie)
			r.Put("/", s.handleUpdateMovie)
			r.Delete("/", s.handleDeleteMovie)
			r.Get("/reviews", s.handleListReviewsForMovie)
		})
	})
	s.router.Route("/reviews", func(r chi.Router) {
		r.Post("/", s.handleCreateReview)
		r.Route("/{id:[0-9]+}", func(r chi.Router) {
			r.Get("/", s.handleGetReview)
			r.Put("/", s.handleUpdateReview)
			r.Delete("/", s.handleDeleteReview)
		})
	})

	// Paths used by the first frontend client.
	s.router.Group(func(r chi.Router) {
		r.Use(allowUnknownFields)
		r.Post("/addMovie", s.handleCreateMovie)
		r.Put("/updateMovie/{id:[0-9]+}", s.handleUpdateMovie)
		r.Options("/updateMovie/{id:[0-9]+}", s.handleUpdateMovieOptions)
		r.Delete("/deleteMovie/{id:[0-9]+}", s.handleDeleteMovie)
		r.Get("/getMovie/{id:[0-9]+}", s.handleGetMovie)
		r.Post("/addReview", s.handleCreateReview)
		r.Get("/getReviews/{id:[0-9]+}", s.handleListReviewsForMovie)
		r.Get("/getReview/{id:[0-9]+}", s.handleGetReview)
		r.Put("/editReview/{id:[0-9]+}", s.handleUpdateReview)
		r.Delete("/deleteReview/{id:[0-9]+}", s.handleDeleteReview)
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start boots the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown failed", "error", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

type healthResponse struct {
	Status string          `json:"status"`
	DB     store.PoolStats `json:"db"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.HealthCheck(ctx); err != nil {
		s.logger.Warn("health check failed", "error", err)
		s.respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Database unreachable")
		return
	}
	s.respondJSON(w, http.StatusOK, healthResponse{Status: "ok", DB: s.store.Stats()})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
}

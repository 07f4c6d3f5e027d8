package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/Clark-Hu/screen-catalog/internal/auth"
	"github.com/Clark-Hu/screen-catalog/internal/config"
	"github.com/Clark-Hu/screen-catalog/internal/domain"
	"github.com/Clark-Hu/screen-catalog/internal/metadata"
	"github.com/Clark-Hu/screen-catalog/internal/metrics"
	"github.com/Clark-Hu/screen-catalog/internal/repository"
	"github.com/Clark-Hu/screen-catalog/internal/score"
	"github.com/Clark-Hu/screen-catalog/internal/store"
)

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg      config.Config
	store    *store.Store
	repo     *repository.Repository
	scores   *score.Maintainer
	metadata metadata.Client
	verifier auth.JWTVerifier
	logger   *zap.Logger
	router   chi.Router
	httpSrv  *http.Server
}

// Deps are the collaborators the server needs. Store may be nil in tests,
// in which case /healthz always reports unavailable.
type Deps struct {
	Store    *store.Store
	Repo     *repository.Repository
	Scores   *score.Maintainer
	Metadata metadata.Client
	Logger   *zap.Logger
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	meta := deps.Metadata
	if meta == nil {
		meta = metadata.Disabled{}
	}

	s := &Server{
		cfg:      cfg,
		store:    deps.Store,
		repo:     deps.Repo,
		scores:   deps.Scores,
		metadata: meta,
		verifier: auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)},
		logger:   logger.With(zap.String("component", "http")),
		router:   chi.NewRouter(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.accessLog)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   parseCORSOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Location", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.registerRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	admin := auth.RequireStaticToken(s.cfg.AuthToken)
	user := auth.RequireUser(s.verifier)

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.router.Route("/movies", func(r chi.Router) {
		r.Get("/", s.handleListMovies)
		r.With(admin).Post("/", s.handleCreateMovie)
		r.Route("/{movieID}", func(r chi.Router) {
			r.Get("/", s.handleGetMovie)
			r.Get("/reviews", s.handleListReviews)
			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Put("/", s.handleUpdateMovie)
				r.Delete("/", s.handleDeleteMovie)
				r.Post("/seasons", s.handleCreateSeason)
				r.Put("/genres/{genreID}", s.handleAttachGenre)
				r.Delete("/genres/{genreID}", s.handleDetachGenre)
				r.Put("/cast/{personID}", s.handleUpsertCast)
				r.Delete("/cast/{personID}", s.handleRemoveCast)
			})
			r.Group(func(r chi.Router) {
				r.Use(user)
				r.Get("/review", s.getScore(domain.KindReview, "movieID"))
				r.Post("/review", s.addScore(domain.KindReview, "movieID"))
				r.Put("/review", s.updateScore(domain.KindReview, "movieID"))
				r.Delete("/review", s.removeScore(domain.KindReview, "movieID"))
			})
		})
	})

	s.router.Route("/seasons/{seasonID}", func(r chi.Router) {
		r.Get("/", s.handleGetSeason)
		r.With(admin).Delete("/", s.handleDeleteSeason)
		r.With(admin).Post("/episodes", s.handleCreateEpisode)
	})

	s.router.Route("/episodes/{episodeID}", func(r chi.Router) {
		r.Get("/", s.handleGetEpisode)
		r.With(admin).Put("/", s.handleUpdateEpisode)
		r.With(admin).Delete("/", s.handleDeleteEpisode)
		r.Group(func(r chi.Router) {
			r.Use(user)
			r.Get("/rating", s.getScore(domain.KindRating, "episodeID"))
			r.Post("/rating", s.addScore(domain.KindRating, "episodeID"))
			r.Put("/rating", s.updateScore(domain.KindRating, "episodeID"))
			r.Delete("/rating", s.removeScore(domain.KindRating, "episodeID"))
		})
	})

	s.router.With(user).Delete("/ratings/{ratingID}", s.removeScoreByID(domain.KindRating, "ratingID"))
	s.router.With(user).Delete("/reviews/{reviewID}", s.removeScoreByID(domain.KindReview, "reviewID"))

	s.router.Route("/genres", func(r chi.Router) {
		r.Get("/", s.handleListGenres)
		r.With(admin).Post("/", s.handleCreateGenre)
		r.With(admin).Delete("/{genreID}", s.handleDeleteGenre)
		r.Get("/{genreID}/movies", s.handleListGenreMovies)
	})

	for path, people := range map[string]*repository.PeopleRepository{
		"/directors": s.repo.Directors,
		"/actors":    s.repo.Actors,
	} {
		s.router.Route(path, func(r chi.Router) {
			r.Get("/", s.handleListPeople(people))
			r.With(admin).Post("/", s.handleCreatePerson(people))
			r.Get("/{personID}", s.handleGetPerson(people))
			r.With(admin).Put("/{personID}", s.handleUpdatePerson(people))
			r.With(admin).Delete("/{personID}", s.handleDeletePerson(people))
		})
	}

	s.router.Route("/users", func(r chi.Router) {
		r.Use(admin)
		r.Post("/", s.handleCreateUser)
		r.Get("/{userID}", s.handleGetUser)
	})

	s.router.Route("/me", func(r chi.Router) {
		r.Use(user)
		r.Get("/wishlist", s.handleListWishlist)
		r.Put("/wishlist/{movieID}", s.handleAddWishlist)
		r.Delete("/wishlist/{movieID}", s.handleRemoveWishlist)
	})
}

// Start runs the HTTP server until ctx is cancelled or the listener fails.
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
		s.logger.Info("listening", zap.String("addr", s.httpSrv.Addr))
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
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.HealthCheck(ctx); err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "database unreachable")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// accessLog logs one line per request and records request metrics under the
// matched route pattern.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		var route string
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)
		metrics.ObserveHTTPRequest(r.Method, route, status, elapsed)

		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", elapsed),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("remote", r.RemoteAddr))
	})
}

func parseCORSOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

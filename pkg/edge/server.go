// Package edge is the HTTP surface the façade is invoked through: thin
// routing and DTO translation only, with no business logic beyond what's
// needed to invoke the façade.
package edge

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/cityresilience/scenario-engine/pkg/engine"
)

// Server is the HTTP edge wrapping an engine.Facade.
type Server struct {
	router   *chi.Mux
	http     *http.Server
	facade   *engine.Facade
	logger   *slog.Logger
	validate *validator.Validate
}

// Option configures a Server.
type Option func(*Server)

// WithLogger overrides the server's logger.
func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

// New builds a Server listening on addr and routing to facade.
func New(addr string, facade *engine.Facade, opts ...Option) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		facade:   facade,
		logger:   slog.Default(),
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/scenario", func(r chi.Router) {
			r.Post("/prepare", s.handlePrepare)
			r.Get("/list", s.handleListPrepared)
			r.Get("/describe", s.handleDescribePrepared)
			r.Get("/timeline", s.handleTimeline)
		})
		r.Route("/sim", func(r chi.Router) {
			r.Post("/start", s.handleStart)
			r.Get("/state", s.handleState)
			r.Get("/tick", s.handleTick)
		})
		r.Route("/dependencies", func(r chi.Router) {
			r.Get("/chain", s.handleDependencyChain)
			r.Get("/graph", s.handleDependencyGraph)
		})
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// Start begins serving, blocking until the listener stops.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP edge", slog.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP edge")
	return s.http.Shutdown(ctx)
}

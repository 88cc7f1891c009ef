package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/enerbat/bacs-engine/internal/assessment"
	"github.com/enerbat/bacs-engine/internal/catalog"
	"github.com/enerbat/bacs-engine/internal/config"
	"github.com/enerbat/bacs-engine/internal/services"
	"github.com/enerbat/bacs-engine/internal/storage"
)

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	service        assessment.Service
	catalog        *catalog.Loader
	repo           storage.Repository
	registry       *services.Registry
	authMiddleware *AuthMiddleware
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	service assessment.Service,
	cat *catalog.Loader,
	repo storage.Repository,
	registry *services.Registry,
) *Server {
	s := &Server{
		config:         cfg,
		service:        service,
		catalog:        cat,
		repo:           repo,
		registry:       registry,
		authMiddleware: NewAuthMiddleware(repo),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS configuration for the browser front-end
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (outside versioned API - public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	// API v1 routes (protected by authentication)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware.Authenticate)

		// Reference catalog (static, read-only)
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/", s.handleListCategories)
			r.Get("/{categoryId}", s.handleGetCategory)
			r.Get("/{categoryId}/subcategories", s.handleListSubCategories)
		})

		// Projects and their assessment state
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", s.handleListProjects)
			r.Post("/", s.handleCreateProject)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetProject)
				r.Delete("/", s.handleDeleteProject)

				r.Get("/assessments", s.handleGetAssessments)
				r.Put("/assessments/{subCategoryId}", s.handleUpdateAssessment)

				r.Get("/categories", s.handleGetCategorySettings)
				r.Post("/categories/{categoryId}/toggle", s.handleToggleCategory)

				r.Get("/results", s.handleGetResults)
				r.Get("/results/stream", s.handleResultStream)
			})
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

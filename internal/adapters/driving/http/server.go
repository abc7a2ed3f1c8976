package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReporter reports the state of the AI services
type HealthReporter interface {
	Health(ctx context.Context) map[string]string
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     chi.Router
	version    string
	logger     *zap.Logger

	// Services
	answerService    driving.AnswerService
	chatService      driving.ChatService
	reviewService    driving.ReviewService
	authService      driving.AuthService
	ingestionService driving.IngestionService

	// Infrastructure
	db Pinger         // PostgreSQL health check
	ai HealthReporter // AI services health (optional)
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		AllowedOrigins: []string{"*"},
	}
}

// Services groups the driving ports exposed over HTTP
type Services struct {
	Answer    driving.AnswerService
	Chat      driving.ChatService
	Review    driving.ReviewService
	Auth      driving.AuthService
	Ingestion driving.IngestionService
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, svcs Services, db Pinger, ai HealthReporter, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		router:           chi.NewRouter(),
		version:          cfg.Version,
		logger:           logger,
		answerService:    svcs.Answer,
		chatService:      svcs.Chat,
		reviewService:    svcs.Review,
		authService:      svcs.Auth,
		ingestionService: svcs.Ingestion,
		db:               db,
		ai:               ai,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes(cfg.AllowedOrigins)
	return s
}

// Handler returns the root handler, used by tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(allowedOrigins []string) {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(s.logger).Handler)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	authMiddleware := NewAuthMiddleware(s.authService)

	// Health endpoints (no auth)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/version", s.handleVersion)

	r.Route("/api/v1", func(r chi.Router) {
		// Question answering (public)
		r.Post("/answer", s.handleAnswer)
		r.Post("/syllabus/search", s.handleSearchInSyllabus)
		r.Post("/fallback", s.handleFallback)

		// Chat (public)
		r.Post("/chat", s.handleChat)
		r.Get("/chat/{sessionID}/history", s.handleChatHistory)
		r.Delete("/chat/{sessionID}", s.handleChatReset)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", s.handleLogin)

			// Curation and ingestion (admin-only)
			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.Authenticate)
				r.Use(authMiddleware.RequireAdmin)

				r.Get("/pending", s.handleListPending)
				r.Post("/pending/{id}/approve", s.handleApprove)
				r.Delete("/pending/{id}", s.handleReject)
				r.Post("/ingest", s.handleScheduleIngest)
				r.Get("/tasks/{id}", s.handleTaskStatus)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

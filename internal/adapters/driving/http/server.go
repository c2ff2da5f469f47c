package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/custodia-labs/quizcorpus/internal/corpus"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driven"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// CorpusInspector exposes read-only corpus statistics
type CorpusInspector interface {
	Stats() corpus.Stats
}

// Services groups the driving ports the server routes to.
type Services struct {
	Auth        driving.AuthService
	Retrieval   driving.RetrievalService
	Feedback    driving.FeedbackService
	Corrections driving.CorrectionService
	Moderation  driving.ModerationService
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	authService       driving.AuthService
	retrievalService  driving.RetrievalService
	feedbackService   driving.FeedbackService
	correctionService driving.CorrectionService
	moderationService driving.ModerationService

	corpus    CorpusInspector
	taskQueue driven.TaskQueue // optional
	readiness map[string]Pinger
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	AllowedOrigins []string
	Logger         *slog.Logger
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

// NewServer creates a new HTTP server. taskQueue may be nil when corrections
// run inline; readiness lists the backends checked by GET /ready.
func NewServer(
	cfg Config,
	services Services,
	corpusInspector CorpusInspector,
	taskQueue driven.TaskQueue,
	readiness map[string]Pinger,
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:            http.NewServeMux(),
		version:           cfg.Version,
		logger:            logger,
		authService:       services.Auth,
		retrievalService:  services.Retrieval,
		feedbackService:   services.Feedback,
		correctionService: services.Corrections,
		moderationService: services.Moderation,
		corpus:            corpusInspector,
		taskQueue:         taskQueue,
		readiness:         readiness,
	}

	s.setupRoutes()

	handler := NewRecoveryMiddleware(logger).Handler(
		NewLoggingMiddleware(logger).Handler(
			NewCORSMiddleware(cfg.AllowedOrigins).Handler(s.router)))

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.authService)

	admin := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(authMiddleware.RequireAdmin(h))
	}
	moderator := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(authMiddleware.RequireModerator(h))
	}

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Learner-facing endpoints (public)
	s.router.HandleFunc("POST /api/v1/retrieve", s.handleRetrieve)
	s.router.HandleFunc("POST /api/v1/feedback", s.handleFeedback)

	// Auth endpoints
	s.router.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	s.router.Handle("GET /api/v1/me",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetMe)))

	// Document and correction endpoints (admin-only)
	s.router.Handle("GET /api/v1/documents/current", admin(s.handleGetCurrentDocument))
	s.router.Handle("GET /api/v1/documents/versions", admin(s.handleListVersions))
	s.router.Handle("GET /api/v1/documents/{id}", admin(s.handleGetDocument))
	s.router.Handle("POST /api/v1/corrections", admin(s.handleApplyCorrection))
	s.router.Handle("GET /api/v1/corpus/stats", admin(s.handleCorpusStats))
	s.router.Handle("GET /api/v1/queue/stats", admin(s.handleQueueStats))

	// Moderation endpoints (admin or reviewer)
	s.router.Handle("POST /api/v1/moderation", moderator(s.handleEnqueueReview))
	s.router.Handle("GET /api/v1/moderation/pending", moderator(s.handleListPending))
	s.router.Handle("GET /api/v1/moderation/history", moderator(s.handleHistory))
	s.router.Handle("GET /api/v1/moderation/stats", moderator(s.handleModerationStats))
	s.router.Handle("GET /api/v1/feedback/insights", moderator(s.handleFeedbackInsights))
	s.router.Handle("GET /api/v1/moderation/accuracy", moderator(s.handleAccuracy))
	s.router.Handle("GET /api/v1/moderation/{id}", moderator(s.handleGetReview))
	s.router.Handle("POST /api/v1/moderation/{id}/resolve", moderator(s.handleResolveReview))
	s.router.Handle("POST /api/v1/moderation/flags", admin(s.handleFlagBias))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

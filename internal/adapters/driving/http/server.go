package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driving"
	"github.com/Allerac/allerac-one-sub001/internal/runtime"
)

// DefaultMaxUploadBytes caps multipart upload bodies
const DefaultMaxUploadBytes int64 = 20 << 20

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueueMonitor is the slice of the task queue the readiness check reads
type QueueMonitor interface {
	Pinger
	Stats(ctx context.Context) (*driven.QueueStats, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer     *http.Server
	router         *http.ServeMux
	version        string
	maxUploadBytes int64
	logger         *slog.Logger

	// Services
	authService   driving.AuthService
	docService    driving.DocumentService
	searchService driving.SearchService
	memoryService driving.MemoryService
	aiServices    *runtime.Services

	// Infrastructure
	db        Pinger // PostgreSQL health check
	taskQueue QueueMonitor
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	authService driving.AuthService,
	docService driving.DocumentService,
	searchService driving.SearchService,
	memoryService driving.MemoryService,
	aiServices *runtime.Services,
	taskQueue QueueMonitor,
	db Pinger,
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}

	s := &Server{
		router:         http.NewServeMux(),
		version:        cfg.Version,
		maxUploadBytes: maxUpload,
		logger:         logger,
		authService:    authService,
		docService:     docService,
		searchService:  searchService,
		memoryService:  memoryService,
		aiServices:     aiServices,
		taskQueue:      taskQueue,
		db:             db,
	}

	s.setupRoutes()

	handler := NewLoggingMiddleware(logger).Handler(
		NewRecoveryMiddleware(logger).Handler(s.router))

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.authService)
	authed := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(h)
	}

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.Handle("GET /metrics", promhttp.Handler())

	// Documents
	s.router.Handle("POST /api/v1/documents", authed(s.handleUploadDocument))
	s.router.Handle("GET /api/v1/documents", authed(s.handleListDocuments))
	s.router.Handle("GET /api/v1/documents/{id}", authed(s.handleGetDocument))
	s.router.Handle("DELETE /api/v1/documents/{id}", authed(s.handleDeleteDocument))

	// Search
	s.router.Handle("POST /api/v1/search", authed(s.handleSearch))
	s.router.Handle("POST /api/v1/context", authed(s.handleRelevantContext))

	// Conversation memory
	s.router.Handle("GET /api/v1/conversations/{id}/summary/eligibility", authed(s.handleSummaryEligibility))
	s.router.Handle("POST /api/v1/conversations/{id}/summary", authed(s.handleGenerateSummary))
	s.router.Handle("DELETE /api/v1/conversations/{id}/summary", authed(s.handleDeleteSummary))
	s.router.Handle("POST /api/v1/conversations/{id}/corrections", authed(s.handleRecordCorrection))
	s.router.Handle("GET /api/v1/memory/summaries", authed(s.handleRecentSummaries))
	s.router.Handle("GET /api/v1/memory/context", authed(s.handleMemoryContext))
}

// Handler returns the server's root handler including middleware
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
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

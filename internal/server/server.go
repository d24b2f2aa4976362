package server

import (
	"admin-backend/internal/observability"
	"admin-backend/internal/store"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

const readyTimeout = 2 * time.Second

// Server exposes liveness and readiness probes for the worker.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	port       int
	checks     map[string]store.Pinger
	logger     *observability.Logger
}

// New creates a Server. Each check must answer Ping for /ready to succeed.
func New(port int, checks map[string]store.Pinger, logger *observability.Logger) *Server {
	s := &Server{
		port:   port,
		checks: checks,
		logger: logger,
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	gin.SetMode(gin.ReleaseMode)
	s.router = gin.New()
	s.router.Use(observability.Middleware(s.logger))

	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ready", s.handleReady)
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	failing := gin.H{}
	for _, name := range names {
		if err := s.checks[name].Ping(ctx); err != nil {
			s.logger.Error(ctx, fmt.Sprintf("readiness check %s failed", name), err)
			failing[name] = err.Error()
		}
	}

	if len(failing) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": failing})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Start listens in the background. A listen failure is sent on the returned
// channel.
func (s *Server) Start(ctx context.Context) <-chan error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, fmt.Sprintf("Health server starting on port %d", s.port))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("health server failed: %w", err)
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown stops the listener, waiting up to ctx for open requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

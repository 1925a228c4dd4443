// Package server exposes the pipeline over a small REST API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"restaurants/internal/domain"
	"restaurants/internal/etl"
)

// Runner is the part of the pipeline service the API needs.
type Runner interface {
	RunPipeline(ctx context.Context, trigger domain.Trigger) (*domain.Run, *etl.RunResult, error)
	ListRuns(limit int) ([]domain.Run, error)
	GetRun(id string) (*domain.Run, error)
	ListFailures(runID string) ([]domain.RecordFailure, error)
	Running() bool
}

// Server holds the state for the REST API server.
type Server struct {
	runner Runner
	log    *slog.Logger
	router *gin.Engine

	// background is the parent context of asynchronous runs.
	background context.Context
}

// New creates a Server. Asynchronous runs started through the API are
// bound to ctx.
func New(ctx context.Context, runner Runner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{runner: runner, log: logger, router: r, background: ctx}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.POST("/v1/runs", s.handleStartRun)
	s.router.GET("/v1/runs", s.handleListRuns)
	s.router.GET("/v1/runs/:id", s.handleGetRun)
	s.router.GET("/v1/runs/:id/failures", s.handleListFailures)
}

// Health check
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "running": s.runner.Running()})
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

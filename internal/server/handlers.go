package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"restaurants/internal/domain"
	"restaurants/internal/service"
)

// AppError carries the HTTP status an error maps to.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// mapError picks the status code for err.
func mapError(err error) *AppError {
	var appErr *AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, domain.ErrRunNotFound):
		return &AppError{Code: http.StatusNotFound, Message: "run not found", Err: err}
	case errors.Is(err, service.ErrAlreadyRunning):
		return &AppError{Code: http.StatusConflict, Message: "pipeline is already running", Err: err}
	default:
		return &AppError{Code: http.StatusInternalServerError, Message: "internal error", Err: err}
	}
}

func handleError(c *gin.Context, err error) {
	appErr := mapError(err)
	c.JSON(appErr.Code, gin.H{"error": appErr.Error()})
}

// handleStartRun runs the pipeline. With ?async=true the run is started in
// the background and 202 is returned immediately.
func (s *Server) handleStartRun(c *gin.Context) {
	if c.Query("async") == "true" {
		if s.runner.Running() {
			handleError(c, service.ErrAlreadyRunning)
			return
		}
		go func() {
			if _, _, err := s.runner.RunPipeline(s.background, domain.TriggerHTTP); err != nil {
				s.log.Warn("async run failed", "error", err)
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
		return
	}

	run, result, err := s.runner.RunPipeline(c.Request.Context(), domain.TriggerHTTP)
	if err != nil && run == nil {
		handleError(c, err)
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"run": run, "result": result, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run, "result": result})
}

func (s *Server) handleListRuns(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			handleError(c, &AppError{Code: http.StatusBadRequest, Message: "invalid limit", Err: err})
			return
		}
		limit = n
	}
	runs, err := s.runner.ListRuns(limit)
	if err != nil {
		handleError(c, err)
		return
	}
	if runs == nil {
		runs = []domain.Run{}
	}
	c.JSON(http.StatusOK, runs)
}

func (s *Server) handleGetRun(c *gin.Context) {
	run, err := s.runner.GetRun(c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) handleListFailures(c *gin.Context) {
	failures, err := s.runner.ListFailures(c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	if failures == nil {
		failures = []domain.RecordFailure{}
	}
	c.JSON(http.StatusOK, failures)
}

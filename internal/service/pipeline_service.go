package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"restaurants/internal/domain"
	"restaurants/internal/etl"
)

// ─────────────────────────────────────────────────────────────
// Pipeline Service: runs, history, schedule and file watch
// ─────────────────────────────────────────────────────────────

// ErrAlreadyRunning is returned when a run is requested while another one
// is still in progress.
var ErrAlreadyRunning = errors.New("pipeline is already running")

const pipelineKey = "pipeline"

// PipelineService is the single entry point every trigger goes through:
// CLI, cron schedule, file watch, HTTP and MCP. At most one run executes
// at a time.
type PipelineService struct {
	pipeline  *etl.Pipeline
	runs      domain.RunStore
	emitter   EventEmitter
	publisher Publisher
	log       *slog.Logger
	running   runningGuard

	// RunTimeout bounds a single run; zero means no limit.
	RunTimeout time.Duration
	// Debounce is how long the watcher waits after the last change.
	Debounce   time.Duration

	// watcher / cron lifecycle
	mu          sync.Mutex
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

// NewPipelineService creates a PipelineService ready for use. runs and
// emitter may be nil.
func NewPipelineService(pipeline *etl.Pipeline, runs domain.RunStore, emitter EventEmitter, logger *slog.Logger) *PipelineService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if emitter == nil {
		emitter = &LogEmitter{Logger: logger}
	}
	return &PipelineService{
		pipeline: pipeline,
		runs:     runs,
		emitter:  emitter,
		log:      logger,
		Debounce: 500 * time.Millisecond,
	}
}

// SetPublisher enables publishing after every successful run.
func (s *PipelineService) SetPublisher(p Publisher) {
	s.publisher = p
}

// ── Run ────────────────────────────────────────────────────

// RunPipeline executes all stages once and records the run. The returned
// run and result are non-nil whenever the pipeline was started, including
// when it failed.
func (s *PipelineService) RunPipeline(ctx context.Context, trigger domain.Trigger) (*domain.Run, *etl.RunResult, error) {
	if !s.running.TryLock(pipelineKey) {
		s.emitter.Emit(ctx, EventRunSkipped, string(trigger))
		return nil, nil, ErrAlreadyRunning
	}
	defer s.running.Unlock(pipelineKey)

	run := &domain.Run{
		ID:        uuid.New().String(),
		Trigger:   trigger,
		Status:    domain.RunStatusRunning,
		State:     string(etl.StateStart),
		StartedAt: time.Now(),
	}
	if s.runs != nil {
		if err := s.runs.CreateRun(run); err != nil {
			return nil, nil, fmt.Errorf("record run: %w", err)
		}
	}
	log := s.log.With("run_id", run.ID, "trigger", trigger)
	log.Info("run started")
	s.emitter.Emit(ctx, EventRunStarted, run.ID)

	runCtx := ctx
	if s.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.RunTimeout)
		defer cancel()
	}
	result, runErr := s.pipeline.Run(runCtx)

	fillRun(run, result, runErr)
	if s.runs != nil {
		if err := s.runs.FinishRun(run); err != nil {
			log.Error("record run result failed", "error", err)
		}
		if failures := etl.ToDomain(result.Failures()); len(failures) > 0 {
			if err := s.runs.AddFailures(run.ID, failures); err != nil {
				log.Error("record failures failed", "error", err)
			}
		}
	}

	if runErr != nil {
		log.Error("run failed", "stage", run.FailedStage, "error", runErr)
		s.emitter.Emit(ctx, EventRunFailed, run)
		return run, result, runErr
	}
	log.Info("run finished", "rows", run.RowsLoaded, "duration", run.FinishedAt.Sub(run.StartedAt))
	s.emitter.Emit(ctx, EventRunCompleted, run)

	if s.publisher != nil {
		n, err := s.publisher.Publish(ctx, result.Outputs.Parquet.Path)
		if err != nil {
			log.Warn("publish failed", "error", err)
			s.emitter.Emit(ctx, EventPublishFailed, err.Error())
		} else {
			log.Info("dataset published", "rows", n)
			s.emitter.Emit(ctx, EventPublished, n)
		}
	}
	return run, result, nil
}

func fillRun(run *domain.Run, res *etl.RunResult, err error) {
	run.FinishedAt = time.Now()
	run.State = string(res.State)
	run.FailedStage = string(res.FailedStage)
	run.RowsMerged = res.Merged.Rows
	run.RowsLoaded = res.Outputs.Parquet.Rows
	run.LookupsIssued = res.Enrich.Lookups
	run.LookupsFailed = len(res.Enrich.Failures)
	run.EncodingFailures = len(res.Index.Failures)
	run.Status = domain.RunStatusSuccess
	if err != nil {
		run.Status = domain.RunStatusFailed
		run.Error = err.Error()
	}
}

// RunStage executes one stage against the fixed artifact paths. Stage runs
// share the running guard with full runs but are not recorded in history.
func (s *PipelineService) RunStage(ctx context.Context, stage etl.Stage) (*etl.RunResult, error) {
	if !s.running.TryLock(pipelineKey) {
		return nil, ErrAlreadyRunning
	}
	defer s.running.Unlock(pipelineKey)

	s.log.Info("stage started", "stage", stage)
	res, err := s.pipeline.RunStage(ctx, stage)
	if err != nil {
		s.log.Error("stage failed", "stage", stage, "error", err)
		return res, err
	}
	s.log.Info("stage finished", "stage", stage, "duration", res.Durations[stage])
	return res, nil
}

// Publish copies the current final output with the configured publisher.
func (s *PipelineService) Publish(ctx context.Context) (int, error) {
	if s.publisher == nil {
		return 0, fmt.Errorf("publishing is not configured")
	}
	return s.publisher.Publish(ctx, s.pipeline.Paths().OutputParquet)
}

// Running reports whether a run is in progress.
func (s *PipelineService) Running() bool {
	return s.running.Running(pipelineKey)
}

// ── History ────────────────────────────────────────────────

// ListRuns returns the most recent runs first.
func (s *PipelineService) ListRuns(limit int) ([]domain.Run, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.ListRuns(limit)
}

// GetRun returns one run by ID.
func (s *PipelineService) GetRun(id string) (*domain.Run, error) {
	if s.runs == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, id)
	}
	return s.runs.GetRun(id)
}

// ListFailures returns the per-record failures of one run.
func (s *PipelineService) ListFailures(runID string) ([]domain.RecordFailure, error) {
	if s.runs == nil {
		return nil, nil
	}
	if _, err := s.runs.GetRun(runID); err != nil {
		return nil, err
	}
	return s.runs.ListFailures(runID)
}

// ── Triggers (cron + file watch) ──────────────────────────

// Schedule runs the pipeline on a standard five-field cron expression.
// A run that fires while another is in progress is skipped.
func (s *PipelineService) Schedule(ctx context.Context, expr string) error {
	c := cron.New()
	_, err := c.AddFunc(expr, func() {
		s.log.Info("etl cron: running pipeline")
		if _, _, err := s.RunPipeline(ctx, domain.TriggerSchedule); err != nil {
			s.log.Warn("etl cron: run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	s.mu.Lock()
	if s.cronSched != nil {
		s.cronSched.Stop()
	}
	s.cronSched = c
	s.mu.Unlock()

	c.Start()
	s.log.Info("etl cron: scheduled", "expr", expr)
	return nil
}

// Watch re-runs the pipeline whenever a file matching the input pattern is
// created or written in the input directory. Bursts of events are
// coalesced into one run after Debounce.
func (s *PipelineService) Watch(ctx context.Context) error {
	paths := s.pipeline.Paths()
	dir, err := filepath.Abs(paths.InputDir)
	if err != nil {
		return fmt.Errorf("bad input dir %q: %w", paths.InputDir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch dir %q: %w", dir, err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.closeWatcherLocked()
	s.watcher = watcher
	s.watchCancel = cancel
	s.mu.Unlock()

	go s.watchLoop(watchCtx, watcher, paths.Pattern)
	s.log.Info("etl watcher: watching", "dir", dir, "pattern", paths.Pattern)
	return nil
}

func (s *PipelineService) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, pattern string) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if ok, _ := filepath.Match(pattern, filepath.Base(event.Name)); !ok {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			changed := event.Name
			timer = time.AfterFunc(s.Debounce, func() {
				s.log.Info("etl watcher: partition changed, running pipeline", "path", changed)
				if _, _, err := s.RunPipeline(ctx, domain.TriggerWatch); err != nil {
					s.log.Warn("etl watcher: run failed", "error", err)
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("etl watcher: error", "error", err)
		}
	}
}

// WaitRunning blocks until the running pipeline finishes or ctx is
// cancelled. Used for graceful shutdown.
func (s *PipelineService) WaitRunning(ctx context.Context) {
	s.running.WaitAll(ctx)
}

// Stop tears down the watcher and the scheduler. It is safe to call more
// than once.
func (s *PipelineService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeWatcherLocked()
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}

func (s *PipelineService) closeWatcherLocked() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
}

package etl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"restaurants/internal/config"
	"restaurants/internal/domain"
	"restaurants/internal/geocode"
	"restaurants/internal/secret"
)

// ── Pipeline ───────────────────────────────────────────────
// Orchestrates: merge → enrich → index → load.
//
// Each stage reads the previous stage's artifact from disk and writes its
// own, so any stage can be re-run on its own against the fixed paths.

// Options configures a Pipeline.
type Options struct {
	Paths    config.Paths
	Columns  domain.ColumnNames
	Secrets  secret.SecretStore
	Geocoder geocode.Geocoder
	Logger   *slog.Logger

	// CacheSize > 0 shares lookup results between identical queries
	// within one enrichment pass.
	CacheSize int
}

// Pipeline runs the four stages against one input and one output directory.
type Pipeline struct {
	paths     config.Paths
	cols      domain.ColumnNames
	secrets   secret.SecretStore
	geocoder  geocode.Geocoder
	cacheSize int
	log       *slog.Logger
}

// New creates a pipeline. A nil Geocoder selects the public OpenCage
// endpoint with the default timeout; a nil Logger discards output.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		paths:     opts.Paths,
		cols:      opts.Columns,
		secrets:   opts.Secrets,
		geocoder:  opts.Geocoder,
		cacheSize: opts.CacheSize,
		log:       opts.Logger,
	}
	if p.cols == (domain.ColumnNames{}) {
		p.cols = domain.DefaultColumns()
	}
	if p.geocoder == nil {
		p.geocoder = geocode.NewOpenCage("", 0)
	}
	if p.log == nil {
		p.log = slog.New(slog.DiscardHandler)
	}
	return p
}

// Paths returns the artifact locations the pipeline reads and writes.
func (p *Pipeline) Paths() config.Paths {
	return p.paths
}

// Columns returns the on-disk names of the well-known fields.
func (p *Pipeline) Columns() domain.ColumnNames {
	return p.cols
}

// ArtifactOf returns the handle of the artifact stage writes at its fixed
// path. Rows is unknown (zero) until the artifact is produced or read.
func (p *Pipeline) ArtifactOf(stage Stage) Artifact {
	switch stage {
	case StageMerge:
		return Artifact{Stage: stage, Path: p.paths.Merged}
	case StageEnrich:
		return Artifact{Stage: stage, Path: p.paths.Enriched}
	case StageIndex:
		return Artifact{Stage: stage, Path: p.paths.Transformed}
	default:
		return Artifact{Stage: StageLoad, Path: p.paths.OutputParquet}
	}
}

// RunResult is the outcome of a pipeline run.
type RunResult struct {
	State       State                   `json:"state"`
	FailedStage Stage                   `json:"failedStage,omitempty"`
	Merged      Artifact                `json:"merged"`
	Enriched    Artifact                `json:"enriched"`
	Indexed     Artifact                `json:"indexed"`
	Outputs     Outputs                 `json:"outputs"`
	Enrich      EnrichReport            `json:"enrich"`
	Index       IndexReport             `json:"index"`
	Durations   map[Stage]time.Duration `json:"durations"`
}

// Failures returns every per-record failure of the run, enrichment first.
func (r *RunResult) Failures() []RecordFailure {
	out := make([]RecordFailure, 0, len(r.Enrich.Failures)+len(r.Index.Failures))
	out = append(out, r.Enrich.Failures...)
	return append(out, r.Index.Failures...)
}

// Run executes all four stages in order. The first fatal error moves the
// run to the failed state and skips the remaining stages; the partial
// result is returned alongside the error.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	m := NewMachine()
	res := &RunResult{State: m.State(), Durations: map[Stage]time.Duration{}}

	fail := func(stage Stage, err error) (*RunResult, error) {
		m.Fail()
		res.State = m.State()
		res.FailedStage = stage
		p.log.Error("pipeline failed", "stage", stage, "error", err)
		return res, err
	}
	advance := func(stage Stage, to State, started time.Time) error {
		res.Durations[stage] = time.Since(started)
		if err := m.Advance(to); err != nil {
			return err
		}
		res.State = m.State()
		return nil
	}

	p.log.Info("pipeline started", "input_dir", p.paths.InputDir, "pattern", p.paths.Pattern)

	started := time.Now()
	merged, err := p.Merge(ctx)
	if err != nil {
		return fail(StageMerge, err)
	}
	res.Merged = merged
	if err := advance(StageMerge, StateMerged, started); err != nil {
		return fail(StageMerge, err)
	}

	started = time.Now()
	enriched, report, err := p.Enrich(ctx, merged)
	res.Enrich = report
	if err != nil {
		return fail(StageEnrich, err)
	}
	res.Enriched = enriched
	if err := advance(StageEnrich, StateEnriched, started); err != nil {
		return fail(StageEnrich, err)
	}

	started = time.Now()
	indexed, ireport, err := p.Index(ctx, enriched)
	res.Index = ireport
	if err != nil {
		return fail(StageIndex, err)
	}
	res.Indexed = indexed
	if err := advance(StageIndex, StateIndexed, started); err != nil {
		return fail(StageIndex, err)
	}

	started = time.Now()
	outputs, err := p.Load(ctx, indexed)
	if err != nil {
		return fail(StageLoad, err)
	}
	res.Outputs = outputs
	if err := advance(StageLoad, StateLoaded, started); err != nil {
		return fail(StageLoad, err)
	}

	p.log.Info("pipeline finished",
		"rows", outputs.Parquet.Rows,
		"lookups", report.Lookups,
		"lookup_failures", len(report.Failures),
		"encoding_failures", len(ireport.Failures),
	)
	return res, nil
}

// RunStage executes a single stage against the fixed artifact paths, reading
// whatever the previous stage last wrote.
func (p *Pipeline) RunStage(ctx context.Context, stage Stage) (*RunResult, error) {
	res := &RunResult{State: StateStart, Durations: map[Stage]time.Duration{}}
	started := time.Now()
	var err error

	switch stage {
	case StageMerge:
		res.Merged, err = p.Merge(ctx)
		res.State = StateMerged
	case StageEnrich:
		res.Enriched, res.Enrich, err = p.Enrich(ctx, p.ArtifactOf(StageMerge))
		res.State = StateEnriched
	case StageIndex:
		res.Indexed, res.Index, err = p.Index(ctx, p.ArtifactOf(StageEnrich))
		res.State = StateIndexed
	case StageLoad:
		res.Outputs, err = p.Load(ctx, p.ArtifactOf(StageIndex))
		res.State = StateLoaded
	default:
		return nil, fmt.Errorf("unknown stage %q", stage)
	}
	res.Durations[stage] = time.Since(started)

	if err != nil {
		res.State = StateFailed
		res.FailedStage = stage
		return res, err
	}
	return res, nil
}

package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"restaurants/internal/domain"
	"restaurants/internal/etl"
)

func (s *Server) registerPipelineTools() {
	s.mcp.AddTool(mcp.NewTool("run_pipeline",
		mcp.WithDescription("Run the restaurant pipeline end to end: merge partitions, geocode missing coordinates, add geohashes and write the Parquet and CSV outputs. Overwrites previous outputs."),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRunPipeline)

	s.mcp.AddTool(mcp.NewTool("run_stage",
		mcp.WithDescription("Run a single stage against the artifact the previous stage last wrote"),
		mcp.WithString("stage", mcp.Description("Stage name"), mcp.Required(), mcp.Enum("merge", "enrich", "index", "load")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRunStage)

	s.mcp.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List recent pipeline runs, newest first"),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default 20)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListRuns)

	s.mcp.AddTool(mcp.NewTool("get_run",
		mcp.WithDescription("Get one pipeline run together with its per-record failures"),
		mcp.WithString("runId", mcp.Description("Run ID"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleGetRun)
}

func boolPtr(b bool) *bool { return &b }

func (s *Server) handleRunPipeline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	run, result, err := s.pipeline.RunPipeline(ctx, domain.TriggerMCP)
	if err != nil {
		if run == nil {
			return errorResult(err, nil), nil
		}
		return errorResult(err, map[string]any{"run": run, "result": result}), nil
	}
	return jsonResult(map[string]any{"run": run, "result": result})
}

func (s *Server) handleRunStage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stage := etl.Stage(req.GetString("stage", ""))
	valid := false
	for _, st := range etl.Stages {
		if st == stage {
			valid = true
		}
	}
	if !valid {
		return nil, fmt.Errorf("unknown stage %q", stage)
	}

	result, err := s.pipeline.RunStage(ctx, stage)
	if err != nil {
		return errorResult(err, result), nil
	}
	return jsonResult(result)
}

func (s *Server) handleListRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)
	if limit <= 0 {
		limit = 20
	}
	runs, err := s.pipeline.ListRuns(limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	if runs == nil {
		runs = []domain.Run{}
	}
	return jsonResult(runs)
}

func (s *Server) handleGetRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("runId", "")
	if id == "" {
		return nil, fmt.Errorf("runId is required")
	}
	run, err := s.pipeline.GetRun(id)
	if err != nil {
		return nil, err
	}
	failures, err := s.pipeline.ListFailures(id)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	if failures == nil {
		failures = []domain.RecordFailure{}
	}
	return jsonResult(map[string]any{"run": run, "failures": failures})
}

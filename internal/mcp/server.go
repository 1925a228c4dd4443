package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"restaurants/internal/domain"
	"restaurants/internal/etl"
)

// Pipeline is the part of the pipeline service exposed as MCP tools.
type Pipeline interface {
	RunPipeline(ctx context.Context, trigger domain.Trigger) (*domain.Run, *etl.RunResult, error)
	RunStage(ctx context.Context, stage etl.Stage) (*etl.RunResult, error)
	ListRuns(limit int) ([]domain.Run, error)
	GetRun(id string) (*domain.Run, error)
	ListFailures(runID string) ([]domain.RecordFailure, error)
}

// Server is the MCP server for the restaurant pipeline.
// It exposes tools and resources so AI agents can trigger and inspect runs.
type Server struct {
	mcp      *server.MCPServer
	pipeline Pipeline
	log      *slog.Logger
}

// Deps holds all dependencies passed from the app layer to the MCP server.
type Deps struct {
	Pipeline Pipeline
	Logger   *slog.Logger
	Version  string
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := &Server{pipeline: deps.Pipeline, log: logger}

	s.mcp = server.NewMCPServer(
		"restaurants-mcp",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	s.registerPipelineTools()
	s.registerResources()
	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.log.Info("mcp: starting stdio server")
	return server.ServeStdio(s.mcp)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// errorResult reports a failure to the agent without failing the call.
func errorResult(err error, v any) *mcp.CallToolResult {
	res := textResult(err.Error())
	if v != nil {
		if data, mErr := json.MarshalIndent(v, "", "  "); mErr == nil {
			res.Content = append(res.Content, mcp.TextContent{Type: "text", Text: string(data)})
		}
	}
	res.IsError = true
	return res
}

package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

const runsResourceURI = "restaurants://runs"

func (s *Server) registerResources() {
	// ── restaurants://runs ─────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		runsResourceURI,
		"Recent Pipeline Runs",
		mcp.WithMIMEType("application/json"),
	), s.handleRunsResource)
}

func (s *Server) handleRunsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	runs, err := s.pipeline.ListRuns(20)
	if err != nil {
		return nil, err
	}

	type runSummary struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		State  string `json:"state"`
		Rows   int    `json:"rows"`
	}

	summaries := []runSummary{}
	for _, r := range runs {
		summaries = append(summaries, runSummary{ID: r.ID, Status: string(r.Status), State: r.State, Rows: r.RowsLoaded})
	}

	data, _ := json.MarshalIndent(summaries, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      runsResourceURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

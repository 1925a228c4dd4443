package domain

import (
	"errors"
	"time"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the outcome of a pipeline run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// Trigger names what started a run.
type Trigger string

const (
	TriggerManual   Trigger = "manual"
	TriggerSchedule Trigger = "schedule"
	TriggerWatch    Trigger = "file_watch"
	TriggerHTTP     Trigger = "http"
	TriggerMCP      Trigger = "mcp"
)

// Run is the persisted history of one pipeline execution.
type Run struct {
	ID               string    `json:"id"`
	Trigger          Trigger   `json:"trigger"`
	Status           RunStatus `json:"status"`
	State            string    `json:"state"`       // last pipeline state reached
	FailedStage      string    `json:"failedStage"` // empty unless Status is failed
	RowsMerged       int       `json:"rowsMerged"`
	RowsLoaded       int       `json:"rowsLoaded"`
	LookupsIssued    int       `json:"lookupsIssued"`
	LookupsFailed    int       `json:"lookupsFailed"`
	EncodingFailures int       `json:"encodingFailures"`
	Error            string    `json:"error,omitempty"`
	StartedAt        time.Time `json:"startedAt"`
	FinishedAt       time.Time `json:"finishedAt"`
}

// RecordFailure is a non-fatal, per-record problem kept for observability.
type RecordFailure struct {
	ID     string `json:"id"`
	RunID  string `json:"runId"`
	Stage  string `json:"stage"`
	Row    int    `json:"row"`
	Query  string `json:"query,omitempty"`
	Reason string `json:"reason"`
}

// RunStore manages pipeline run history.
type RunStore interface {
	CreateRun(r *Run) error
	FinishRun(r *Run) error
	GetRun(id string) (*Run, error)
	ListRuns(limit int) ([]Run, error)
	AddFailures(runID string, failures []RecordFailure) error
	ListFailures(runID string) ([]RecordFailure, error)
}

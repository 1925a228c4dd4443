package etl

import (
	"errors"
	"fmt"
)

// Fatal errors abort the run; the per-record ones never leave their stage
// and only show up in stage reports.
var (
	// ErrNotFound means no input partition matched the pattern.
	ErrNotFound = errors.New("no input partitions found")
	// ErrConfigurationMissing means the geocoding credential is not configured.
	ErrConfigurationMissing = errors.New("configuration missing")
	// ErrIOFailure means an artifact could not be read or written.
	ErrIOFailure = errors.New("artifact i/o failure")

	// ErrLookupFailed marks a record whose geocoding lookup failed.
	ErrLookupFailed = errors.New("geocoding lookup failed")
	// ErrEncodingFailed marks a record whose geohash could not be derived.
	ErrEncodingFailed = errors.New("geohash encoding failed")
)

// StageError wraps a fatal error with the stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

func ioFailure(stage Stage, err error) error {
	return stageError(stage, fmt.Errorf("%w: %w", ErrIOFailure, err))
}

// FailedStage returns the stage a fatal error came from, or "" if err is
// not a StageError.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

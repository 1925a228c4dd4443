package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"restaurants/internal/domain"
)

// RunStore implements domain.RunStore on SQLite.
type RunStore struct {
	db *DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

const runColumns = `id, trigger, status, state, failed_stage, rows_merged, rows_loaded,
	lookups_issued, lookups_failed, encoding_failures, error, started_at, finished_at`

func (s *RunStore) CreateRun(r *domain.Run) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	if r.Status == "" {
		r.Status = domain.RunStatusRunning
	}
	_, err := s.db.conn.Exec(
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Trigger, r.Status, r.State, r.FailedStage, r.RowsMerged, r.RowsLoaded,
		r.LookupsIssued, r.LookupsFailed, r.EncodingFailures, r.Error, r.StartedAt, r.StartedAt,
	)
	return err
}

func (s *RunStore) FinishRun(r *domain.Run) error {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now()
	}
	res, err := s.db.conn.Exec(
		`UPDATE runs SET status=?, state=?, failed_stage=?, rows_merged=?, rows_loaded=?,
		 lookups_issued=?, lookups_failed=?, encoding_failures=?, error=?, finished_at=? WHERE id=?`,
		r.Status, r.State, r.FailedStage, r.RowsMerged, r.RowsLoaded,
		r.LookupsIssued, r.LookupsFailed, r.EncodingFailures, r.Error, r.FinishedAt, r.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrRunNotFound, r.ID)
	}
	return nil
}

func (s *RunStore) GetRun(id string) (*domain.Run, error) {
	row := s.db.conn.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListRuns returns the most recent runs first.
func (s *RunStore) ListRuns(limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.conn.Query(
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var r domain.Run
	var trigger, status string
	if err := row.Scan(
		&r.ID, &trigger, &status, &r.State, &r.FailedStage, &r.RowsMerged, &r.RowsLoaded,
		&r.LookupsIssued, &r.LookupsFailed, &r.EncodingFailures, &r.Error, &r.StartedAt, &r.FinishedAt,
	); err != nil {
		return nil, err
	}
	r.Trigger = domain.Trigger(trigger)
	r.Status = domain.RunStatus(status)
	return &r, nil
}

// ── Record failures ────────────────────────────────────────

// AddFailures stores the per-record failures of a run in one transaction.
func (s *RunStore) AddFailures(runID string, failures []domain.RecordFailure) error {
	if len(failures) == 0 {
		return nil
	}
	tx, err := s.db.conn.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(
		`INSERT INTO record_failures (id, run_id, stage, row_index, query, reason) VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range failures {
		f := &failures[i]
		f.ID = uuid.New().String()
		f.RunID = runID
		if _, err := stmt.Exec(f.ID, runID, f.Stage, f.Row, f.Query, f.Reason); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert failure %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func (s *RunStore) ListFailures(runID string) ([]domain.RecordFailure, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, run_id, stage, row_index, query, reason
		 FROM record_failures WHERE run_id = ? ORDER BY stage, row_index`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RecordFailure
	for rows.Next() {
		var f domain.RecordFailure
		if err := rows.Scan(&f.ID, &f.RunID, &f.Stage, &f.Row, &f.Query, &f.Reason); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

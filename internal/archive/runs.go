package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/funvill/cultural-archiver-sub007/internal/db"
	"github.com/funvill/cultural-archiver-sub007/internal/massimport"
)

// RunSummary is the listing view of an import run.
type RunSummary struct {
	RunUUID       string     `json:"run_uuid"`
	SourceName    string     `json:"source_name"`
	BatchID       string     `json:"batch_id"`
	DryRun        bool       `json:"dry_run"`
	Status        string     `json:"status"`
	CircuitBroken bool       `json:"circuit_broken"`
	Imported      int        `json:"imported"`
	Merged        int        `json:"merged"`
	Skipped       int        `json:"skipped"`
	Errored       int        `json:"errored"`
	NotAttempted  int        `json:"not_attempted"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// RunDetail adds the full per-candidate report.
type RunDetail struct {
	RunSummary
	Report       json.RawMessage `json:"report,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
}

// BeginRun opens a run record in running state and returns its internal id
// and UUID. The row survives a crash so operators can see stuck runs.
func (s *Store) BeginRun(ctx context.Context, sourceName, batchID string, dryRun bool) (int64, string, error) {
	if s == nil || s.pool == nil {
		return 0, "", fmt.Errorf("archive store is not initialized")
	}

	const q = `
INSERT INTO archive.import_runs (source_name, batch_id, dry_run, status, started_at, created_at, updated_at)
VALUES ($1, $2, $3, 'running', now(), now(), now())
RETURNING run_id, run_uuid
`
	var runID int64
	var runUUID string
	if err := s.pool.QueryRow(ctx, q, sourceName, batchID, dryRun).Scan(&runID, &runUUID); err != nil {
		return 0, "", fmt.Errorf("insert import run: %w", err)
	}
	return runID, runUUID, nil
}

// CompleteRun closes a run with its final counts and full report.
func (s *Store) CompleteRun(ctx context.Context, runID int64, report massimport.Report) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("archive store is not initialized")
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}

	const q = `
UPDATE archive.import_runs
SET
	status = 'completed',
	circuit_broken = $2,
	imported = $3,
	merged = $4,
	skipped = $5,
	errored = $6,
	not_attempted = $7,
	report = $8::jsonb,
	finished_at = $9,
	updated_at = now()
WHERE run_id = $1
`
	commandTag, err := s.pool.Exec(ctx, q,
		runID,
		report.CircuitBroken,
		report.Summary.Imported,
		report.Summary.MergedDuplicates,
		report.Summary.SkippedDuplicates,
		report.Summary.Errors,
		report.Summary.NotAttempted,
		string(reportJSON),
		report.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("complete import run %d: %w", runID, err)
	}
	if commandTag.RowsAffected() == 0 {
		return fmt.Errorf("import run %d not found", runID)
	}
	return nil
}

// FailRun closes a run that aborted before producing a report.
func (s *Store) FailRun(ctx context.Context, runID int64, cause error) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("archive store is not initialized")
	}

	message := "unknown failure"
	if cause != nil {
		message = cause.Error()
	}

	const q = `
UPDATE archive.import_runs
SET
	status = 'failed',
	error_message = $2,
	finished_at = now(),
	updated_at = now()
WHERE run_id = $1
`
	if _, err := s.pool.Exec(ctx, q, runID, message); err != nil {
		return fmt.Errorf("fail import run %d: %w", runID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("archive store is not initialized")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	const q = `
SELECT
	run_uuid, source_name, batch_id, dry_run, status, circuit_broken,
	imported, merged, skipped, errored, not_attempted,
	started_at, finished_at
FROM archive.import_runs
ORDER BY run_id DESC
LIMIT $1
`
	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query import runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(
			&r.RunUUID, &r.SourceName, &r.BatchID, &r.DryRun, &r.Status, &r.CircuitBroken,
			&r.Imported, &r.Merged, &r.Skipped, &r.Errored, &r.NotAttempted,
			&r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan import run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate import run rows: %w", err)
	}
	return runs, nil
}

// GetRun returns one run with its report, or nil when the UUID is unknown.
func (s *Store) GetRun(ctx context.Context, runUUID string) (*RunDetail, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("archive store is not initialized")
	}

	const q = `
SELECT
	run_uuid, source_name, batch_id, dry_run, status, circuit_broken,
	imported, merged, skipped, errored, not_attempted,
	started_at, finished_at, report, error_message
FROM archive.import_runs
WHERE run_uuid = $1
`
	var r RunDetail
	var reportRaw []byte
	err := s.pool.QueryRow(ctx, q, runUUID).Scan(
		&r.RunUUID, &r.SourceName, &r.BatchID, &r.DryRun, &r.Status, &r.CircuitBroken,
		&r.Imported, &r.Merged, &r.Skipped, &r.Errored, &r.NotAttempted,
		&r.StartedAt, &r.FinishedAt, &reportRaw, &r.ErrorMessage,
	)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query import run %s: %w", runUUID, err)
	}
	if len(reportRaw) > 0 {
		r.Report = json.RawMessage(reportRaw)
	}
	return &r, nil
}

// Package repo is the sole module in this worker granted the database
// handle (spec §4.3, §9 "security-boundary module"). Every statement
// against the batch and row tables lives here, parameter-bound, and
// nowhere else — mirroring the teacher's jobs/pg package, which is the
// only place jobs/jobmanager.go issues SQL, generalized from the teacher's
// generic multi-app batch schema to this worker's single-purpose
// batch/row pair.
package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/remiges-tech/ingestworker/internal/model"
)

// Repo is the only type in this process that issues SQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New wraps an already-constructed pgxpool.Pool. Pool construction stays in
// cmd/ingestworker/main.go so the pool's lifetime (and its Close on
// shutdown, spec §4.8) is owned by the caller, the way
// jobs/examples/batch-recovery/main.go's getDb() hands a *pgxpool.Pool to
// jobs.NewJobManager.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Claim implements the CTE from spec §4.3: exactly one worker wins the
// oldest uploaded batch via FOR UPDATE SKIP LOCKED (W6). Returns nil, nil
// when no uploaded batch exists (spec §8 boundary behavior).
func (r *Repo) Claim(ctx context.Context, workerID string) (*model.Batch, error) {
	const q = `
WITH claimed AS (
	UPDATE batch
	SET status = 'parsing',
	    claimed_by = $1,
	    claimed_at = now(),
	    heartbeat_at = now(),
	    attempt_count = attempt_count + 1
	WHERE id = (
		SELECT id FROM batch
		WHERE status = 'uploaded'
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	)
	RETURNING id, tenant_id, storage_path, original_file_name, column_mapping,
	          status, claimed_by, claimed_at, heartbeat_at, attempt_count,
	          last_error_code, last_error_at, total_rows, report_summary, created_at
)
SELECT * FROM claimed`

	row := r.pool.QueryRow(ctx, q, workerID)
	b, err := scanBatch(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("claim: %w", err)
	}
	return b, nil
}

// ReapResult reports what one Reap invocation did.
type ReapResult struct {
	Reset  int
	Failed int
}

// Reap runs the two disjoint idempotent updates from spec §4.3 (W2): reset
// requires attempt_count < max, fail requires attempt_count >= max, both
// gated on the same stale-heartbeat predicate. Order between the two
// statements does not matter because the predicates never overlap.
func (r *Repo) Reap(ctx context.Context, staleThreshold time.Duration, maxAttempts int) (ReapResult, error) {
	const resetQ = `
UPDATE batch
SET status = 'uploaded', claimed_by = NULL, claimed_at = NULL, heartbeat_at = NULL
WHERE status = 'parsing'
  AND heartbeat_at < now() - $1::interval
  AND attempt_count < $2`

	const failQ = `
UPDATE batch
SET status = 'failed', last_error_code = $3, last_error_at = now()
WHERE status = 'parsing'
  AND heartbeat_at < now() - $1::interval
  AND attempt_count >= $2`

	interval := fmt.Sprintf("%d seconds", int(staleThreshold.Seconds()))

	resetTag, err := r.pool.Exec(ctx, resetQ, interval, maxAttempts)
	if err != nil {
		return ReapResult{}, fmt.Errorf("reap reset: %w", err)
	}
	failTag, err := r.pool.Exec(ctx, failQ, interval, maxAttempts, model.ErrCodeMaxAttemptsExceeded)
	if err != nil {
		return ReapResult{}, fmt.Errorf("reap fail: %w", err)
	}

	return ReapResult{
		Reset:  int(resetTag.RowsAffected()),
		Failed: int(failTag.RowsAffected()),
	}, nil
}

// Heartbeat refreshes heartbeat_at for the claimed batch (W1: scoped by id).
func (r *Repo) Heartbeat(ctx context.Context, batchID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE batch SET heartbeat_at = now() WHERE id = $1`, batchID)
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}

// Progress updates total_rows and refreshes the heartbeat in one statement
// (spec §4.6 step 6: "unconditionally issue a progress update").
func (r *Repo) Progress(ctx context.Context, batchID uuid.UUID, totalRows int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE batch SET total_rows = $2, heartbeat_at = now() WHERE id = $1`,
		batchID, totalRows)
	if err != nil {
		return fmt.Errorf("progress: %w", err)
	}
	return nil
}

// Complete transitions the batch to staging with its final report summary
// (W7: worker may only set parsing/staging/failed).
func (r *Repo) Complete(ctx context.Context, batchID uuid.UUID, totalRows int, summary model.ReportSummary) error {
	b, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal report summary: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE batch SET status = 'staging', total_rows = $2, report_summary = $3, heartbeat_at = now() WHERE id = $1`,
		batchID, totalRows, b)
	if err != nil {
		return fmt.Errorf("complete: %w", err)
	}
	return nil
}

// Fail transitions the batch to failed with the given error code (used for
// BATCH_ROW_LIMIT; the reaper's own fail path uses its dedicated query so
// it can gate on attempt_count in the same statement as W2 requires).
func (r *Repo) Fail(ctx context.Context, batchID uuid.UUID, errorCode string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE batch SET status = 'failed', last_error_code = $2, last_error_at = now() WHERE id = $1`,
		batchID, errorCode)
	if err != nil {
		return fmt.Errorf("fail: %w", err)
	}
	return nil
}

// InsertRows inserts one chunk with ON CONFLICT (batch_id, row_number) DO
// NOTHING, making chunk re-inserts idempotent (I4). The chunk is sent as
// one single-row INSERT statement per row, all queued in one pgx.Batch
// and sent in a single round trip; it is not one multi-row VALUES
// statement. Every
// row binds batch_id and tenant_id exclusively from the in-memory rows
// slice, which the ingestion pipeline populates only from the claimed
// batch (W3, W5) — this function never accepts a tenant id as a separate
// argument, precisely to prevent a caller from supplying one from
// elsewhere.
func (r *Repo) InsertRows(ctx context.Context, rows []model.Row) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const q = `
INSERT INTO row (batch_id, tenant_id, row_number, raw, payload, status, error_code, error_detail)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (batch_id, row_number) DO NOTHING`

	for _, row := range rows {
		raw, err := json.Marshal(row.Raw)
		if err != nil {
			return fmt.Errorf("marshal raw row %d: %w", row.RowNumber, err)
		}
		payload, err := json.Marshal(row.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload row %d: %w", row.RowNumber, err)
		}
		batch.Queue(q, row.BatchID, row.TenantID, row.RowNumber, raw, payload, row.Status, row.ErrorCode, row.ErrorDetail)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range rows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert rows: %w", err)
		}
	}
	return nil
}

func scanBatch(row pgx.Row) (*model.Batch, error) {
	var b model.Batch
	var columnMapping []byte
	var reportSummary []byte
	if err := row.Scan(
		&b.ID, &b.TenantID, &b.StoragePath, &b.OriginalName, &columnMapping,
		&b.Status, &b.ClaimedBy, &b.ClaimedAt, &b.HeartbeatAt, &b.AttemptCount,
		&b.LastErrorCode, &b.LastErrorAt, &b.TotalRows, &reportSummary, &b.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(columnMapping) > 0 {
		if err := json.Unmarshal(columnMapping, &b.ColumnMapping); err != nil {
			return nil, fmt.Errorf("unmarshal column_mapping: %w", err)
		}
	}
	if len(reportSummary) > 0 {
		var rs model.ReportSummary
		if err := json.Unmarshal(reportSummary, &rs); err != nil {
			return nil, fmt.Errorf("unmarshal report_summary: %w", err)
		}
		b.ReportSummary = &rs
	}
	return &b, nil
}

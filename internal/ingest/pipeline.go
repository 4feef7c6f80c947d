// Package ingest implements the streaming CSV pipeline (spec §4.6): parse,
// normalize headers, enforce the row cap, normalize rows, validate,
// chunk-insert, and flush-to-complete. Grounded in shape on
// jobs/jobmanager.go's chunk-fetch/process/flush loop, but driven by a
// single streaming encoding/csv.Reader instead of the teacher's paged SQL
// fetch, since this worker's input is an object-storage byte stream rather
// than rows already resident in the database.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/remiges-tech/logharbour/logharbour"

	"github.com/remiges-tech/ingestworker/internal/metrics"
	"github.com/remiges-tech/ingestworker/internal/model"
)

// ErrRowCapExceeded is the sentinel the main loop checks with errors.Is
// per spec §4.6 step 3: the batch is already terminal (failed) by the time
// this is returned, so the caller must not retry or let the reaper touch
// it.
var ErrRowCapExceeded = errors.New("ingest: row cap exceeded")

// Repo is the subset of internal/repo.Repo the pipeline needs.
type Repo interface {
	InsertRows(ctx context.Context, rows []model.Row) error
	Progress(ctx context.Context, batchID uuid.UUID, totalRows int) error
	Heartbeat(ctx context.Context, batchID uuid.UUID) error
	Complete(ctx context.Context, batchID uuid.UUID, totalRows int, summary model.ReportSummary) error
	Fail(ctx context.Context, batchID uuid.UUID, errorCode string) error
}

// Pipeline runs stages 1-7 of spec §4.6 over one claimed batch's stream.
type Pipeline struct {
	repo              Repo
	logger            *logharbour.Logger
	metrics           metrics.Counters
	chunkSize         int
	rowCap            int
	heartbeatThrottle time.Duration
}

// New constructs a Pipeline with the tunables from internal/config.Worker.
func New(repo Repo, logger *logharbour.Logger, m metrics.Counters, chunkSize, rowCap int, heartbeatThrottle time.Duration) *Pipeline {
	return &Pipeline{
		repo:              repo,
		logger:            logger,
		metrics:           m,
		chunkSize:         chunkSize,
		rowCap:            rowCap,
		heartbeatThrottle: heartbeatThrottle,
	}
}

// Run streams stream through the full pipeline for batch. Returns
// ErrRowCapExceeded (wrapped) when the cap fires; any other non-nil error
// means the batch stays in parsing for the reaper to recover (spec §4.6
// "Failure semantics").
func (p *Pipeline) Run(ctx context.Context, batch *model.Batch, stream io.Reader) error {
	started := time.Now()

	reader := csv.NewReader(stream)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headerRecord, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return fmt.Errorf("ingest: empty CSV stream")
		}
		return fmt.Errorf("ingest: read header record: %w", err)
	}
	headers := NormalizeHeaders(headerRecord)

	var (
		rowNumber   int
		validRows   int
		invalidRows int
		accumulator []model.Row
		lastHeartbeat = started
	)

	flush := func() error {
		if len(accumulator) == 0 {
			return nil
		}
		if err := p.repo.InsertRows(ctx, accumulator); err != nil {
			return fmt.Errorf("ingest: insert chunk: %w", err)
		}
		accumulator = accumulator[:0]
		return nil
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("ingest: read data record: %w", err)
		}

		rowNumber++
		if rowNumber >= p.rowCap {
			p.logger.Error(ErrRowCapExceeded).LogActivity("row cap exceeded", map[string]any{
				"batch_id":  batch.ID.String(),
				"row_count": rowNumber,
				"row_cap":   p.rowCap,
			})
			p.metrics.BatchRowLimitHit()
			if failErr := p.repo.Fail(ctx, batch.ID, model.ErrCodeBatchRowLimit); failErr != nil {
				return fmt.Errorf("ingest: fail batch on row cap: %w", failErr)
			}
			return fmt.Errorf("%w: at row %d", ErrRowCapExceeded, rowNumber)
		}

		raw, fields, payload := BuildRow(batch.OriginalName, headers, record, batch.ColumnMapping, rowNumber)
		row := model.Row{
			BatchID:   batch.ID,
			TenantID:  batch.TenantID,
			RowNumber: rowNumber,
			Raw:       raw,
			Payload:   payload,
		}

		failures := ValidateFields(fields["first_name"], fields["last_name"], fields["email"], fields["phone"], dobPointer(fields))
		if len(failures) == 0 {
			row.Status = model.RowStaged
			validRows++
		} else {
			row.Status = model.RowError
			code := model.ErrCodeValidationFailed
			detail := joinMessages(failures)
			row.ErrorCode = &code
			row.ErrorDetail = &detail
			invalidRows++
		}
		accumulator = append(accumulator, row)

		if len(accumulator) >= p.chunkSize {
			if err := flush(); err != nil {
				return err
			}
			if err := p.repo.Progress(ctx, batch.ID, rowNumber); err != nil {
				return fmt.Errorf("ingest: progress update: %w", err)
			}
			if time.Since(lastHeartbeat) >= p.heartbeatThrottle {
				if err := p.repo.Heartbeat(ctx, batch.ID); err != nil {
					return fmt.Errorf("ingest: heartbeat: %w", err)
				}
				lastHeartbeat = time.Now()
			}
		}
	}

	if err := flush(); err != nil {
		return err
	}

	p.metrics.RowsStaged(validRows)
	p.metrics.RowsErrored(invalidRows)

	completed := time.Now()
	summary := model.ReportSummary{
		TotalRows:     rowNumber,
		ValidRows:     validRows,
		InvalidRows:   invalidRows,
		DuplicateRows: 0,
		ParseErrors:   0,
		StartedAt:     started,
		CompletedAt:   completed,
		DurationMs:    completed.Sub(started).Milliseconds(),
	}
	if err := p.repo.Complete(ctx, batch.ID, rowNumber, summary); err != nil {
		return fmt.Errorf("ingest: complete: %w", err)
	}
	return nil
}

func joinMessages(messages []string) string {
	out := messages[0]
	for _, m := range messages[1:] {
		out += "; " + m
	}
	return out
}

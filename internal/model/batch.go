// Package model defines the persistent and in-memory value types shared by
// the repository, ingestion pipeline, and claim orchestrator.
package model

import (
	"time"

	"github.com/google/uuid"
)

// BatchStatus is the lifecycle status of a batch row.
type BatchStatus string

const (
	BatchUploaded BatchStatus = "uploaded"
	BatchParsing  BatchStatus = "parsing"
	BatchStaging  BatchStatus = "staging"
	BatchFailed   BatchStatus = "failed"
)

// Error codes the worker and reaper may stamp on a batch's last_error_code.
const (
	ErrCodeMaxAttemptsExceeded = "MAX_ATTEMPTS_EXCEEDED"
	ErrCodeBatchRowLimit       = "BATCH_ROW_LIMIT"
)

// ColumnMapping maps canonical field names to the original CSV header
// strings supplied by the upload-side ingress.
type ColumnMapping map[string]string

// Batch represents one uploaded CSV awaiting or undergoing ingestion.
type Batch struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	StoragePath     string
	OriginalName    string
	ColumnMapping   ColumnMapping
	Status          BatchStatus
	ClaimedBy       *string
	ClaimedAt       *time.Time
	HeartbeatAt     *time.Time
	AttemptCount    int
	LastErrorCode   *string
	LastErrorAt     *time.Time
	TotalRows       int
	ReportSummary   *ReportSummary
	CreatedAt       time.Time
}

// RowStatus is the terminal status of one processed CSV data row.
type RowStatus string

const (
	RowStaged RowStatus = "staged"
	RowError  RowStatus = "error"
)

// ErrCodeValidationFailed is stamped on rows that fail §4.6 validation.
const ErrCodeValidationFailed = "VALIDATION_FAILED"

// Row is one processed CSV data row, append-only once written.
type Row struct {
	BatchID   uuid.UUID
	TenantID  uuid.UUID
	RowNumber int
	Raw       map[string]string
	Payload   Payload
	Status    RowStatus
	ErrorCode *string
	ErrorDetail *string
}

// ReportSummary is the batch's terminal report, persisted as structured JSON
// on Complete.
type ReportSummary struct {
	TotalRows      int       `json:"total_rows"`
	ValidRows      int       `json:"valid_rows"`
	InvalidRows    int       `json:"invalid_rows"`
	DuplicateRows  int       `json:"duplicate_rows"`
	ParseErrors    int       `json:"parse_errors"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
	DurationMs     int64     `json:"duration_ms"`
}

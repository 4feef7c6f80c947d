package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/remiges-tech/ingestworker/internal/model"
	"github.com/remiges-tech/ingestworker/internal/repo"
	"github.com/remiges-tech/ingestworker/wscutils"
)

// schema mirrors spec §3's batch/row tables, minimal enough for the claim/
// reap/insert tests below.
const schema = `
CREATE TABLE batch (
	id uuid PRIMARY KEY,
	tenant_id uuid NOT NULL,
	storage_path text NOT NULL,
	original_file_name text NOT NULL,
	column_mapping jsonb NOT NULL DEFAULT '{}',
	status text NOT NULL,
	claimed_by text,
	claimed_at timestamptz,
	heartbeat_at timestamptz,
	attempt_count int NOT NULL DEFAULT 0,
	last_error_code text,
	last_error_at timestamptz,
	total_rows int NOT NULL DEFAULT 0,
	report_summary jsonb,
	created_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE row (
	batch_id uuid NOT NULL,
	tenant_id uuid NOT NULL,
	row_number int NOT NULL,
	raw jsonb NOT NULL,
	payload jsonb NOT NULL,
	status text NOT NULL,
	error_code text,
	error_detail text,
	PRIMARY KEY (batch_id, row_number)
);
`

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test requiring Docker")
	}

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("ingestworker_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := pgx.Connect(ctx, connStr)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, schema)
	require.NoError(t, err)
	conn.Close(ctx)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func insertBatch(t *testing.T, pool *pgxpool.Pool, status model.BatchStatus, attemptCount int, heartbeatAge time.Duration) uuid.UUID {
	t.Helper()
	id := uuid.New()
	var heartbeatAt any
	if status == model.BatchParsing {
		heartbeatAt = time.Now().Add(-heartbeatAge)
	}
	_, err := pool.Exec(context.Background(),
		`INSERT INTO batch (id, tenant_id, storage_path, original_file_name, status, attempt_count, heartbeat_at, created_at)
		 VALUES ($1, $2, 'tenant/path.csv', 'upload.csv', $3, $4, $5, now())`,
		id, uuid.New(), status, attemptCount, heartbeatAt)
	require.NoError(t, err)
	return id
}

func TestClaimNoOpWhenNothingUploaded(t *testing.T) {
	pool := setupPool(t)
	r := repo.New(pool)

	b, err := r.Claim(context.Background(), "worker-1")
	require.NoError(t, err)
	require.Nil(t, b)
}

func TestClaimClaimsUploadedBatchOnlyOnce(t *testing.T) {
	pool := setupPool(t)
	r := repo.New(pool)

	id := insertBatch(t, pool, model.BatchUploaded, 0, 0)

	b, err := r.Claim(context.Background(), "worker-1")
	require.NoError(t, err)
	require.NotNil(t, b)
	require.Equal(t, id, b.ID)
	require.Equal(t, model.BatchParsing, b.Status)
	require.Equal(t, 1, b.AttemptCount)

	// a second claim attempt must see nothing left to claim
	b2, err := r.Claim(context.Background(), "worker-2")
	require.NoError(t, err)
	require.Nil(t, b2)
}

func TestReapResetAndFailAreDisjoint(t *testing.T) {
	pool := setupPool(t)
	r := repo.New(pool)

	resettable := insertBatch(t, pool, model.BatchParsing, 1, time.Hour)
	failable := insertBatch(t, pool, model.BatchParsing, 5, time.Hour)

	result, err := r.Reap(context.Background(), 5*time.Minute, 3)
	require.NoError(t, err)
	require.Equal(t, 1, result.Reset)
	require.Equal(t, 1, result.Failed)

	var resetStatus, failedStatus string
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT status FROM batch WHERE id = $1`, resettable).Scan(&resetStatus))
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT status FROM batch WHERE id = $1`, failable).Scan(&failedStatus))
	require.Equal(t, string(model.BatchUploaded), resetStatus)
	require.Equal(t, string(model.BatchFailed), failedStatus)
}

func TestInsertRowsIsIdempotentOnConflict(t *testing.T) {
	pool := setupPool(t)
	r := repo.New(pool)

	batchID := insertBatch(t, pool, model.BatchParsing, 1, 0)
	tenantID := uuid.New()

	row := model.Row{
		BatchID:   batchID,
		TenantID:  tenantID,
		RowNumber: 1,
		Raw:       map[string]string{"email": "a@b.com"},
		Payload:   model.NewPayload("upload.csv", 1, map[string]string{"email": "a@b.com"}, wscutils.Optional[string]{}, ""),
		Status:    model.RowStaged,
	}

	require.NoError(t, r.InsertRows(context.Background(), []model.Row{row}))
	// re-inserting the same (batch_id, row_number) must be a silent no-op
	require.NoError(t, r.InsertRows(context.Background(), []model.Row{row}))

	var count int
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT count(*) FROM row WHERE batch_id = $1 AND row_number = 1`, batchID).Scan(&count))
	require.Equal(t, 1, count)
}

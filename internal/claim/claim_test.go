package claim_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remiges-tech/ingestworker/internal/claim"
	"github.com/remiges-tech/ingestworker/internal/logging"
	"github.com/remiges-tech/ingestworker/internal/metrics"
	"github.com/remiges-tech/ingestworker/internal/model"
	"github.com/remiges-tech/ingestworker/internal/repo"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

type mockRepo struct {
	reapResult repo.ReapResult
	reapErr    error
	reapCalls  int
	batch      *model.Batch
	claimErr   error
}

func (m *mockRepo) Reap(ctx context.Context, staleThreshold time.Duration, maxAttempts int) (repo.ReapResult, error) {
	m.reapCalls++
	return m.reapResult, m.reapErr
}

func (m *mockRepo) Claim(ctx context.Context, workerID string) (*model.Batch, error) {
	return m.batch, m.claimErr
}

func newOrchestrator(r *mockRepo) *claim.Orchestrator {
	logger := logging.New("test", discardWriter{})
	return claim.New(r, logger, metrics.Noop{})
}

func TestNextReturnsNilWhenNothingToClaim(t *testing.T) {
	r := &mockRepo{}
	o := newOrchestrator(r)

	batch, err := o.Next(context.Background(), "worker-1", time.Minute, 3)
	require.NoError(t, err)
	assert.Nil(t, batch)
}

func TestNextReturnsClaimedBatch(t *testing.T) {
	want := &model.Batch{ID: uuid.New()}
	r := &mockRepo{batch: want}
	o := newOrchestrator(r)

	got, err := o.Next(context.Background(), "worker-1", time.Minute, 3)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
}

func TestNextPropagatesReapError(t *testing.T) {
	r := &mockRepo{reapErr: errors.New("db unavailable")}
	o := newOrchestrator(r)

	_, err := o.Next(context.Background(), "worker-1", time.Minute, 3)
	require.Error(t, err)
}

func TestNextPropagatesClaimError(t *testing.T) {
	r := &mockRepo{claimErr: errors.New("db unavailable")}
	o := newOrchestrator(r)

	_, err := o.Next(context.Background(), "worker-1", time.Minute, 3)
	require.Error(t, err)
}

func TestNextRunsReapEvenWhenNoneStale(t *testing.T) {
	r := &mockRepo{reapResult: repo.ReapResult{Reset: 0, Failed: 0}}
	o := newOrchestrator(r)

	_, err := o.Next(context.Background(), "worker-1", time.Minute, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, r.reapCalls)
}

// Package claim implements the claim orchestrator (spec §4.5): on each
// invocation, run the reaper, then try to claim one batch. Grounded on
// jobs/recovery.go's sweep-then-act shape and jobmanager.go's Run() loop
// head, generalized from the teacher's periodic-goroutine recovery sweep
// to a synchronous call made once per main-loop iteration, since spec §5
// requires the reaper to run immediately before every claim attempt
// rather than on its own timer.
package claim

import (
	"context"
	"time"

	"github.com/remiges-tech/logharbour/logharbour"

	"github.com/remiges-tech/ingestworker/internal/metrics"
	"github.com/remiges-tech/ingestworker/internal/model"
	"github.com/remiges-tech/ingestworker/internal/repo"
)

// Repo is the subset of internal/repo.Repo the orchestrator needs.
type Repo interface {
	Reap(ctx context.Context, staleThreshold time.Duration, maxAttempts int) (repo.ReapResult, error)
	Claim(ctx context.Context, workerID string) (*model.Batch, error)
}

// Orchestrator runs the reaper-then-claim sequence.
type Orchestrator struct {
	repo    Repo
	logger  *logharbour.Logger
	metrics metrics.Counters
}

// New constructs an Orchestrator.
func New(repo Repo, logger *logharbour.Logger, m metrics.Counters) *Orchestrator {
	return &Orchestrator{repo: repo, logger: logger, metrics: m}
}

// Next runs the reaper, then attempts one claim. Returns the claimed batch
// or nil if none is available (spec §8: "Claim is a no-op and returns
// nothing when no batch has status uploaded").
func (o *Orchestrator) Next(ctx context.Context, workerID string, staleThreshold time.Duration, maxAttempts int) (*model.Batch, error) {
	result, err := o.repo.Reap(ctx, staleThreshold, maxAttempts)
	if err != nil {
		return nil, err
	}
	if result.Reset > 0 || result.Failed > 0 {
		o.logger.Info().LogActivity("reaper swept stale batches", map[string]any{
			"reset":  result.Reset,
			"failed": result.Failed,
		})
		if result.Reset > 0 {
			o.metrics.ReaperReset(result.Reset)
		}
		if result.Failed > 0 {
			o.metrics.ReaperFailed(result.Failed)
		}
	}

	batch, err := o.repo.Claim(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if batch != nil {
		o.metrics.BatchClaimed()
	}
	return batch, nil
}

// Command ingestworker runs the poll loop from spec §4.8: reap stale
// batches, claim the oldest uploaded batch, stream it through the
// ingestion pipeline, and repeat. Grounded on
// jobs/examples/batch-recovery/main.go's getDb/getRedis/getMinioClient/
// getLogger constructors and its signal.Notify shutdown pattern, adapted
// from that example's submit/worker/status CLI modes down to the single
// mode this worker has.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/remiges-tech/logharbour/logharbour"

	ingestworkerconfig "github.com/remiges-tech/ingestworker/config"
	"github.com/remiges-tech/ingestworker/internal/claim"
	"github.com/remiges-tech/ingestworker/internal/config"
	"github.com/remiges-tech/ingestworker/internal/health"
	"github.com/remiges-tech/ingestworker/internal/ingest"
	"github.com/remiges-tech/ingestworker/internal/logging"
	"github.com/remiges-tech/ingestworker/internal/metrics"
	"github.com/remiges-tech/ingestworker/internal/presence"
	"github.com/remiges-tech/ingestworker/internal/repo"
	"github.com/remiges-tech/ingestworker/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ingestworker: "+err.Error())
		os.Exit(1)
	}

	logger := logging.NewStdout(cfg.WorkerID)
	logger.Info().LogActivity("starting ingestworker", map[string]any{
		"worker_id":     cfg.WorkerID,
		"poll_interval": cfg.PollInterval.String(),
	})

	// workCtx is never cancelled by the shutdown signal: spec §4.8/§5
	// require the in-flight batch to reach its terminal transition before
	// exit, so cancellation is expressed as the stop channel below,
	// checked only at the loop boundary — never threaded into
	// pipeline.Run or a repository call as a cancellation source.
	workCtx := context.Background()
	stop := make(chan struct{})

	pool := getDB(workCtx, cfg.DatabaseDSN, cfg.StatementTimeout, logger)
	defer pool.Close()

	redisClient := getRedis()
	defer redisClient.Close()

	store, err := storage.New(cfg.StorageEndpoint, cfg.StorageAccessKey, cfg.StorageSecretKey, cfg.StorageBucket, cfg.StorageUseTLS, logger)
	if err != nil {
		logger.Error(err).LogActivity("failed to construct storage client", nil)
		os.Exit(1)
	}

	m := metrics.NewPrometheus()
	repository := repo.New(pool)
	orchestrator := claim.New(repository, logger, m)
	pipeline := ingest.New(repository, logger, m, cfg.ChunkSize, cfg.RowCap, cfg.HeartbeatThrottleInterval)

	reg := presence.New(redisClient, cfg.WorkerID)
	if err := reg.Register(workCtx); err != nil {
		logger.Warn().LogActivity("presence registration failed", map[string]any{"error": err.Error()})
	}

	tunableWatcher := rigelWatcher(cfg, logger)

	healthSrv := health.New(cfg.WorkerID, logger, reg)
	healthErrs := healthSrv.Start(":" + cfg.HealthPort)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info().LogActivity("shutdown signal received", map[string]any{"signal": sig.String()})
		close(stop)
	}()

	runLoop(workCtx, stop, cfg, orchestrator, pipeline, store, reg, tunableWatcher, logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err).LogActivity("health server shutdown error", nil)
	}
	if err := reg.Deregister(shutdownCtx); err != nil {
		logger.Warn().LogActivity("presence deregistration failed", map[string]any{"error": err.Error()})
	}
	select {
	case err := <-healthErrs:
		if err != nil {
			logger.Error(err).LogActivity("health server error", nil)
		}
	default:
	}
	logger.Info().LogActivity("ingestworker stopped", nil)
}

// runLoop is spec §4.8's main loop: claim, fetch, run, sleep-and-repeat.
// stop is closed by the signal handler; it is only ever observed at the
// top of the loop (the "running" flag from spec §4.8) and while sleeping
// between iterations — never passed into pipeline.Run, so a batch already
// claimed runs to its terminal transition before the next iteration sees
// stop and exits (spec §4.8, §5 Cancellation).
func runLoop(ctx context.Context, stop <-chan struct{}, cfg *config.Worker, orchestrator *claim.Orchestrator, pipeline *ingest.Pipeline, store storage.Client, reg *presence.Registry, tw *config.TunableWatcher, logger *logharbour.Logger) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := tw.Refresh(ctx, cfg); err != nil {
			logger.Warn().LogActivity("tunable refresh failed", map[string]any{"error": err.Error()})
		}
		if err := reg.Heartbeat(ctx); err != nil {
			logger.Warn().LogActivity("presence heartbeat failed", map[string]any{"error": err.Error()})
		}

		batch, err := orchestrator.Next(ctx, cfg.WorkerID, cfg.HeartbeatStaleThreshold, cfg.MaxAttempts)
		if err != nil {
			logger.Error(err).LogActivity("claim orchestrator failed", nil)
			sleepOrStop(stop, cfg.PollInterval)
			continue
		}
		if batch == nil {
			sleepOrStop(stop, cfg.PollInterval)
			continue
		}

		logger.Info().LogActivity("claimed batch", map[string]any{
			"batch_id":     batch.ID.String(),
			"tenant_id":    batch.TenantID.String(),
			"storage_path": batch.StoragePath,
		})

		if batch.StoragePath == "" {
			logger.Warn().LogActivity("claimed batch has empty storage_path", map[string]any{"batch_id": batch.ID.String()})
			sleepOrStop(stop, cfg.PollInterval)
			continue
		}

		signedURL, err := store.SignedURL(ctx, batch.StoragePath, cfg.SignedURLExpiry)
		if err != nil {
			logger.Error(err).LogActivity("failed to sign storage path", map[string]any{"batch_id": batch.ID.String()})
			sleepOrStop(stop, cfg.PollInterval)
			continue
		}

		stream, err := store.OpenStream(ctx, signedURL)
		if err != nil {
			logger.Error(err).LogActivity("failed to open object stream", map[string]any{"batch_id": batch.ID.String()})
			sleepOrStop(stop, cfg.PollInterval)
			continue
		}

		runErr := pipeline.Run(ctx, batch, stream)
		stream.Close()

		if runErr != nil {
			if errors.Is(runErr, ingest.ErrRowCapExceeded) {
				logger.Warn().LogActivity("batch terminated by row cap", map[string]any{"batch_id": batch.ID.String()})
			} else {
				logger.Error(runErr).LogActivity("pipeline run failed, batch remains in parsing for the reaper", map[string]any{"batch_id": batch.ID.String()})
				sleepOrStop(stop, cfg.PollInterval)
			}
		} else {
			logger.Info().LogActivity("batch staged", map[string]any{"batch_id": batch.ID.String()})
		}
	}
}

// sleepOrStop waits for the poll interval, waking early if stop closes.
func sleepOrStop(stop <-chan struct{}, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-stop:
	case <-t.C:
	}
}

// getDB connects the pool with the configured statement timeout applied as
// a per-connection runtime parameter, the way
// Outblock-flowindex/backend/internal/repository/repo_core.go sets
// statement_timeout on ConnConfig.RuntimeParams.
func getDB(ctx context.Context, dsn string, statementTimeout time.Duration, logger *logharbour.Logger) *pgxpool.Pool {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error(err).LogActivity("failed to parse database dsn", nil)
		os.Exit(1)
	}
	if poolCfg.ConnConfig.RuntimeParams == nil {
		poolCfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolCfg.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(statementTimeout.Milliseconds(), 10)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Error(err).LogActivity("failed to connect to database", nil)
		os.Exit(1)
	}
	return pool
}

func getRedis() *redis.Client {
	addr := os.Getenv("INGESTWORKER_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	return redis.NewClient(&redis.Options{Addr: addr})
}

// rigelWatcher dials etcd for hot-reloadable tunables. A dial failure
// disables hot-reload for this run rather than failing startup, since
// rigel only ever backs optional tunables (spec §9 open question,
// resolved in SPEC_FULL.md §C).
func rigelWatcher(cfg *config.Worker, logger *logharbour.Logger) *config.TunableWatcher {
	endpoint := os.Getenv("INGESTWORKER_ETCD_ENDPOINT")
	if endpoint == "" {
		return config.NewTunableWatcher(nil, "", 0, "")
	}
	client, err := ingestworkerconfig.NewRigelClient(endpoint)
	if err != nil {
		logger.Warn().LogActivity("rigel client unavailable, tunables will not hot-reload", map[string]any{"error": err.Error()})
		return config.NewTunableWatcher(nil, "", 0, "")
	}
	return config.NewTunableWatcher(client, "ingestworker", 1, "worker")
}


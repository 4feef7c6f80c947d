// Package config adapts the teacher's Config/Load pattern (whose in-repo
// copy, github.com/remiges-tech/ingestworker/config, now keeps only
// NewRigelClient) to this worker's needs:
// required values fail the process fast and are never sourced from rigel;
// tunables get defaults and may be hot-reloaded from rigel.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/remiges-tech/rigel"
)

// Worker holds every recognized option from spec §4.1.
type Worker struct {
	// Required.
	DatabaseDSN       string
	StorageEndpoint   string
	StorageAccessKey  string
	StorageSecretKey  string
	StorageBucket     string
	StorageUseTLS     bool
	WorkerID          string

	// Tunable, with defaults.
	PollInterval             time.Duration
	HeartbeatStaleThreshold  time.Duration
	MaxAttempts              int
	ChunkSize                int
	StatementTimeout         time.Duration
	SignedURLExpiry          time.Duration
	HealthPort               string
	RowCap                   int
	HeartbeatThrottleInterval time.Duration
}

const (
	defaultPollInterval              = 5 * time.Second
	defaultHeartbeatStaleThreshold   = 5 * time.Minute
	defaultMaxAttempts               = 3
	defaultChunkSize                 = 500
	defaultStatementTimeout          = 60 * time.Second
	defaultSignedURLExpiry           = 600 * time.Second
	defaultHealthPort                = "8080"
	defaultRowCap                    = 10001
	defaultHeartbeatThrottleInterval = 30 * time.Second
)

// Load reads the fixed set of recognized environment variables, failing
// fast with a descriptive error on any missing required value, matching the
// teacher's own Load(cs Config, c any) contract of "Check, then LoadConfig"
// but collapsed into one call since there is exactly one env-backed source
// for required values.
func Load() (*Worker, error) {
	w := &Worker{
		PollInterval:              defaultPollInterval,
		HeartbeatStaleThreshold:   defaultHeartbeatStaleThreshold,
		MaxAttempts:               defaultMaxAttempts,
		ChunkSize:                 defaultChunkSize,
		StatementTimeout:          defaultStatementTimeout,
		SignedURLExpiry:           defaultSignedURLExpiry,
		HealthPort:                defaultHealthPort,
		RowCap:                    defaultRowCap,
		HeartbeatThrottleInterval: defaultHeartbeatThrottleInterval,
	}

	var missing []string
	required := func(name string) string {
		v := os.Getenv(name)
		if v == "" {
			missing = append(missing, name)
		}
		return v
	}

	w.DatabaseDSN = required("INGESTWORKER_DATABASE_DSN")
	w.StorageEndpoint = required("INGESTWORKER_STORAGE_ENDPOINT")
	w.StorageAccessKey = required("INGESTWORKER_STORAGE_ACCESS_KEY")
	w.StorageSecretKey = required("INGESTWORKER_STORAGE_SECRET_KEY")
	w.StorageBucket = required("INGESTWORKER_STORAGE_BUCKET")

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration: %v", missing)
	}

	w.StorageUseTLS = envBool("INGESTWORKER_STORAGE_USE_TLS", false)

	w.WorkerID = os.Getenv("INGESTWORKER_WORKER_ID")
	if w.WorkerID == "" {
		w.WorkerID = uuid.NewString()
	}

	if v := os.Getenv("INGESTWORKER_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid INGESTWORKER_POLL_INTERVAL: %w", err)
		}
		w.PollInterval = d
	}
	if v := os.Getenv("INGESTWORKER_HEARTBEAT_STALE_THRESHOLD"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid INGESTWORKER_HEARTBEAT_STALE_THRESHOLD: %w", err)
		}
		w.HeartbeatStaleThreshold = d
	}
	if v := os.Getenv("INGESTWORKER_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid INGESTWORKER_MAX_ATTEMPTS: %w", err)
		}
		w.MaxAttempts = n
	}
	if v := os.Getenv("INGESTWORKER_CHUNK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid INGESTWORKER_CHUNK_SIZE: %w", err)
		}
		w.ChunkSize = n
	}
	if v := os.Getenv("INGESTWORKER_STATEMENT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid INGESTWORKER_STATEMENT_TIMEOUT: %w", err)
		}
		w.StatementTimeout = d
	}
	if v := os.Getenv("INGESTWORKER_SIGNED_URL_EXPIRY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid INGESTWORKER_SIGNED_URL_EXPIRY: %w", err)
		}
		w.SignedURLExpiry = d
	}
	if v := os.Getenv("INGESTWORKER_HEALTH_PORT"); v != "" {
		w.HealthPort = v
	}
	if v := os.Getenv("INGESTWORKER_ROW_CAP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid INGESTWORKER_ROW_CAP: %w", err)
		}
		w.RowCap = n
	}
	if v := os.Getenv("INGESTWORKER_HEARTBEAT_THROTTLE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid INGESTWORKER_HEARTBEAT_THROTTLE_INTERVAL: %w", err)
		}
		w.HeartbeatThrottleInterval = d
	}

	return w, nil
}

func envBool(name string, def bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// TunableWatcher reloads the non-required tunables from rigel by polling:
// each Refresh call loads the whole tunables config with
// rigel.Rigel.LoadConfig and applies it onto a Worker. Required values are
// never read through this path.
type TunableWatcher struct {
	client        *rigel.Rigel
	schemaName    string
	schemaVersion int
	configName    string
}

// NewTunableWatcher constructs a watcher bound to one rigel schema/config.
// A nil client disables hot-reload entirely (the tunables simply keep their
// env/default values forever), which is the expected mode when no etcd
// endpoint is configured.
func NewTunableWatcher(client *rigel.Rigel, schemaName string, schemaVersion int, configName string) *TunableWatcher {
	return &TunableWatcher{client: client, schemaName: schemaName, schemaVersion: schemaVersion, configName: configName}
}

// tunables mirrors the subset of Worker that rigel is allowed to override.
type tunables struct {
	PollIntervalSeconds             int `json:"poll_interval_seconds"`
	HeartbeatStaleThresholdSeconds  int `json:"heartbeat_stale_threshold_seconds"`
	MaxAttempts                     int `json:"max_attempts"`
	ChunkSize                       int `json:"chunk_size"`
	StatementTimeoutSeconds         int `json:"statement_timeout_seconds"`
	SignedURLExpirySeconds          int `json:"signed_url_expiry_seconds"`
	RowCap                          int `json:"row_cap"`
	HeartbeatThrottleIntervalSeconds int `json:"heartbeat_throttle_interval_seconds"`
}

// Refresh loads the latest tunables from rigel and applies them onto w.
// Called once per main-loop iteration; a rigel outage leaves w untouched
// and returns the error for logging only — it never blocks the poll loop.
// The main loop reads PollInterval, HeartbeatStaleThreshold, MaxAttempts
// and SignedURLExpiry from w on every iteration, so refreshed values of
// those take effect. ChunkSize, RowCap and HeartbeatThrottleInterval are
// copied into the ingestion pipeline, and StatementTimeout into the
// connection pool, once at startup; refreshed values of those four are
// stored on w but do not reach a running process.
func (tw *TunableWatcher) Refresh(ctx context.Context, w *Worker) error {
	if tw == nil || tw.client == nil {
		return nil
	}
	var t tunables
	if err := tw.client.LoadConfig(ctx, tw.schemaName, tw.schemaVersion, tw.configName, &t); err != nil {
		return fmt.Errorf("rigel tunable refresh: %w", err)
	}
	if t.PollIntervalSeconds > 0 {
		w.PollInterval = time.Duration(t.PollIntervalSeconds) * time.Second
	}
	if t.HeartbeatStaleThresholdSeconds > 0 {
		w.HeartbeatStaleThreshold = time.Duration(t.HeartbeatStaleThresholdSeconds) * time.Second
	}
	if t.MaxAttempts > 0 {
		w.MaxAttempts = t.MaxAttempts
	}
	if t.ChunkSize > 0 {
		w.ChunkSize = t.ChunkSize
	}
	if t.StatementTimeoutSeconds > 0 {
		w.StatementTimeout = time.Duration(t.StatementTimeoutSeconds) * time.Second
	}
	if t.SignedURLExpirySeconds > 0 {
		w.SignedURLExpiry = time.Duration(t.SignedURLExpirySeconds) * time.Second
	}
	if t.RowCap > 0 {
		w.RowCap = t.RowCap
	}
	if t.HeartbeatThrottleIntervalSeconds > 0 {
		w.HeartbeatThrottleInterval = time.Duration(t.HeartbeatThrottleIntervalSeconds) * time.Second
	}
	return nil
}

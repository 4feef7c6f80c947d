// Package presence provides a best-effort, advisory worker registry over
// Redis, grounded on jobs/recovery.go's RegisterWorker/RefreshHeartbeat/
// DeregisterWorker and jobs/rediskeys.go's key-naming helpers. Unlike the
// teacher, where this registry gates row recovery, presence here is purely
// observational — surfaced at GET /health as a peer count — because
// spec.md's reaper is exclusively DB-heartbeat-driven (§4.3, §8) and never
// consults Redis for mutual exclusion.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	heartbeatTTL = 60 * time.Second
	registryKey  = "INGESTWORKER_WORKER_REGISTRY"
)

func heartbeatKey(workerID string) string {
	return fmt.Sprintf("INGESTWORKER_{%s}_HEARTBEAT", workerID)
}

// Registry tracks this worker's liveness and counts peers. A nil client
// makes every method a no-op, so presence is entirely optional
// infrastructure: its absence never affects claim/reap correctness.
type Registry struct {
	client   *redis.Client
	workerID string
}

// New constructs a Registry. Pass a nil client to disable presence (the
// health endpoint then reports peers as unavailable rather than zero).
func New(client *redis.Client, workerID string) *Registry {
	return &Registry{client: client, workerID: workerID}
}

// Register adds this worker to the global registry set, grounded on
// jobs/recovery.go's RegisterWorker.
func (reg *Registry) Register(ctx context.Context) error {
	if reg == nil || reg.client == nil {
		return nil
	}
	return reg.client.SAdd(ctx, registryKey, reg.workerID).Err()
}

// Heartbeat refreshes this worker's TTL key, grounded on
// jobs/recovery.go's RefreshHeartbeat.
func (reg *Registry) Heartbeat(ctx context.Context) error {
	if reg == nil || reg.client == nil {
		return nil
	}
	return reg.client.Set(ctx, heartbeatKey(reg.workerID), "alive", heartbeatTTL).Err()
}

// Deregister removes this worker from the registry set on graceful
// shutdown, grounded on jobs/recovery.go's DeregisterWorker.
func (reg *Registry) Deregister(ctx context.Context) error {
	if reg == nil || reg.client == nil {
		return nil
	}
	return reg.client.SRem(ctx, registryKey, reg.workerID).Err()
}

// PeerCount returns how many registered workers currently have a live
// heartbeat key, for the health endpoint's advisory `peers` field. Returns
// (0, false) when presence is disabled or Redis is unreachable — the
// caller distinguishes "no peers" from "couldn't ask".
func (reg *Registry) PeerCount(ctx context.Context) (int, bool) {
	if reg == nil || reg.client == nil {
		return 0, false
	}
	ids, err := reg.client.SMembers(ctx, registryKey).Result()
	if err != nil {
		return 0, false
	}
	alive := 0
	for _, id := range ids {
		exists, err := reg.client.Exists(ctx, heartbeatKey(id)).Result()
		if err != nil {
			continue
		}
		if exists == 1 {
			alive++
		}
	}
	return alive, true
}

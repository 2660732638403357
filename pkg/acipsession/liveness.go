package acipsession

import (
	"context"
	"time"

	"github.com/ascii-chat/acip-core/internal/defaults"
)

// RunLivenessSweeper periodically scans reg for clients that have not been
// Touch()-ed within deathTimeout, marks them done, evicts them from the
// registry, and synthesizes a CLIENT_LEAVE to the remaining peers. It
// returns once ctx is canceled.
//
// A dead client's SendWorker sees its queue closed and its ReceiveWorker sees
// client.Done() on its next iteration; both then return LeaveReasonGraceful,
// and the heartbeat_timeout reason is reported to obs by this sweeper. The
// sweeper itself never touches a client's Session, only the registry and the
// cross-client broadcast, keeping the single-reader/single-writer rule for
// each connection intact.
func RunLivenessSweeper(ctx context.Context, reg *Registry, deathTimeout time.Duration, obs Observer) {
	if obs == nil {
		obs = NoopObserver
	}
	interval := deathTimeout / 3
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepDeadClients(reg, deathTimeout, obs)
		}
	}
}

func sweepDeadClients(reg *Registry, deathTimeout time.Duration, obs Observer) {
	for _, c := range reg.Snapshot() {
		if !c.IsDead(deathTimeout) {
			continue
		}
		reg.Leave(c.ID)
		c.MarkDone()
		c.Queue.Close()
		obs.Leave(c.ID, LeaveReasonHeartbeatTimeout)
		BroadcastLeave(reg, c.ID)
	}
	obs.ConnCount(reg.Count())
}

// DefaultDeathTimeout returns the configured client heartbeat death timeout,
// shortened under TESTING per internal/defaults.
func DefaultDeathTimeout() time.Duration {
	return defaults.Timeout(defaults.HeartbeatDeathTimeout)
}

// Package sweeper abandons game sessions that have been idle for too long.
package sweeper

import (
	"context"
	"log/slog"
	"time"
)

// IdleAbandoner marks idle active sessions as abandoned.
type IdleAbandoner interface {
	AbandonIdleSessions(ctx context.Context, idle time.Duration) (int64, error)
}

// Start runs a background goroutine that sweeps every interval until ctx is
// done. The returned channel is closed once the goroutine has exited.
func Start(ctx context.Context, repo IdleAbandoner, idleTTL, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", interval, "idle_ttl", idleTTL)

		for {
			select {
			case <-ticker.C:
				Sweep(ctx, repo, idleTTL)
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

// Sweep abandons sessions idle for longer than idleTTL once and returns how many were affected.
func Sweep(ctx context.Context, repo IdleAbandoner, idleTTL time.Duration) int64 {
	n, err := repo.AbandonIdleSessions(ctx, idleTTL)
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("Session sweeper: context canceled during sweep", "error", err)
			return 0
		}
		slog.Error("Session sweeper failed to abandon idle sessions", "error", err)
		return 0
	}
	if n > 0 {
		slog.Info("Session sweeper abandoned idle sessions", "count", n)
	}
	return n
}

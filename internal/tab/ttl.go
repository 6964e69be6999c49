package tab

import (
	"context"
	"log/slog"
	"time"
)

// StartReaper runs a background goroutine that periodically closes idle tabs.
// The returned channel is closed once the goroutine has exited.
func StartReaper(ctx context.Context, mgr *Manager, ttl, interval time.Duration, now func() time.Time) <-chan struct{} {
	if now == nil {
		now = time.Now
	}
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		slog.Info("[TAB] Reaper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				reap(mgr, now(), ttl)
			case <-ctx.Done():
				slog.Info("[TAB] Reaper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

func reap(mgr *Manager, now time.Time, ttl time.Duration) {
	closed := mgr.CloseIdle(now, ttl)
	if len(closed) == 0 {
		return
	}
	slog.Info("[TAB] Reaper closed idle tabs", "count", len(closed), "tab_ids", closed, "remaining", mgr.Len())
}

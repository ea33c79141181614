package gamestate

import (
	"context"
	"log/slog"
	"time"
)

// MinSweepInterval is the shortest interval ExpireLoop will tick at.
const MinSweepInterval = time.Second

// ExpireLoop deletes sessions idle for longer than idle, checking every
// interval, until ctx is done. A non-positive idle disables expiry. A
// non-positive interval defaults to idle/2, and any interval is raised to
// MinSweepInterval.
func ExpireLoop(ctx context.Context, st Store, idle, interval time.Duration, logger *slog.Logger) {
	if idle <= 0 {
		return
	}
	if interval <= 0 {
		interval = idle / 2
	}
	if interval < MinSweepInterval {
		interval = MinSweepInterval
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			expired, err := st.ExpireIdle(now.UTC().Add(-idle))
			if err != nil {
				logger.Error("session expiry failed", "err", err)
				continue
			}
			for _, id := range expired {
				logger.Info("session expired", "session_id", id, "idle_timeout", idle)
			}
		}
	}
}

package kv

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is used by RunJanitor when interval is not positive.
const DefaultSweepInterval = time.Minute

// RunJanitor periodically sweeps stores that do not expire keys natively.
// It returns immediately for stores that expire keys themselves, and
// otherwise blocks until ctx is done.
func RunJanitor(ctx context.Context, store Store, interval time.Duration, logger *slog.Logger) {
	sweeper, ok := store.(Sweeper)
	if !ok {
		return
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := sweeper.Sweep(ctx)
			if err != nil {
				logger.Warn("kv sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.Debug("kv sweep", "removed", removed)
			}
		}
	}
}

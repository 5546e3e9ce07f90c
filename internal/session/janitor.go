package session

import (
	"context"
	"log/slog"
	"time"
)

// RunJanitor purges expired state every interval until ctx is done.
func RunJanitor(ctx context.Context, p Purger, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := p.Purge(ctx)
			if err != nil {
				logger.Warn("purge expired sessions", slog.Any("error", err))
				continue
			}
			if removed > 0 {
				logger.Debug("purged expired sessions", slog.Int64("removed", removed))
			}
		}
	}
}

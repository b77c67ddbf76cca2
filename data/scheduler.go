package data

import (
	"context"
	"time"
)

// DefaultRefreshInterval is the daily refresh period.
const DefaultRefreshInterval = 24 * time.Hour

// StartScheduler refreshes all domains every interval until ctx is done.
// It runs in its own goroutine; the returned channel is closed on exit.
func (m *Manager) StartScheduler(ctx context.Context, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		m.logger.InfoContext(ctx, "data refresh scheduler started", "interval", interval)
		for {
			select {
			case <-ctx.Done():
				m.logger.InfoContext(context.Background(), "data refresh scheduler stopped")
				return
			case <-ticker.C:
				if err := m.RefreshAll(ctx); err != nil {
					m.logger.ErrorContext(ctx, "scheduled refresh failed", "error", err)
				}
			}
		}
	}()
	return done
}

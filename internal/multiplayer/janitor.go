package multiplayer

import (
	"context"
	"time"
)

// RunJanitor sweeps stale sessions every GCPeriod until ctx is done.
// One sweep runs immediately.
func (c *Coordinator) RunJanitor(ctx context.Context) error {
	ticker := time.NewTicker(c.config.GCPeriod)
	defer ticker.Stop()

	for {
		if _, err := c.CollectGarbage(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn("GC sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

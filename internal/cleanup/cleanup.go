package cleanup

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/avela/coursegate/internal/db"
)

// Cleaner periodically reclaims storage the inline opportunistic purges do
// not reach: video sessions nobody heartbeats against anymore, sessions of
// revoked or expired tokens, and expired web login sessions. Exclusivity
// behavior does not depend on this loop running.
type Cleaner struct {
	DB             *sql.DB
	Interval       time.Duration
	LivenessWindow time.Duration
	cancel         context.CancelFunc
	done           chan struct{}
}

func (c *Cleaner) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.loop(ctx)
	slog.Info("cleanup scheduler started", "interval", c.Interval)
}

func (c *Cleaner) Stop() {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	slog.Info("cleanup scheduler stopped")
}

func (c *Cleaner) loop(ctx context.Context) {
	defer close(c.done)

	c.runOnce()

	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runOnce()
		}
	}
}

func (c *Cleaner) runOnce() {
	now := time.Now()

	if n, err := db.DeleteStaleSessions(c.DB, now.Add(-c.LivenessWindow)); err != nil {
		slog.Error("cleanup: delete stale video sessions", "error", err)
	} else if n > 0 {
		slog.Info("cleanup: reclaimed stale video sessions", "count", n)
	}

	if n, err := db.DeleteDeadTokenSessions(c.DB, now); err != nil {
		slog.Error("cleanup: delete dead-token sessions", "error", err)
	} else if n > 0 {
		slog.Info("cleanup: removed sessions of dead tokens", "count", n)
	}

	if err := db.CleanExpiredSessions(c.DB); err != nil {
		slog.Error("cleanup: clean expired login sessions", "error", err)
	}
}

package scheduler

import (
	"context"
	"time"

	"github.com/steward-lb/steward/internal/domain"
	"github.com/steward-lb/steward/internal/logger"
	"github.com/steward-lb/steward/internal/pool"
	redisstore "github.com/steward-lb/steward/internal/store/redis"
)

const (
	// DefaultReapThreshold is the age after which terminated member
	// records are deleted
	DefaultReapThreshold = 24 * time.Hour
)

// Reaper deletes terminated member records once they are old enough to no
// longer matter for debugging. Live members are never touched.
type Reaper struct {
	store     *redisstore.Store // nil when persistence is disabled
	roster    *pool.Roster
	logger    logger.Logger
	interval  time.Duration
	threshold time.Duration
	stopCh    chan struct{}
}

// NewReaper creates a new reaper
func NewReaper(
	store *redisstore.Store,
	roster *pool.Roster,
	log logger.Logger,
	interval time.Duration,
	threshold time.Duration,
) *Reaper {
	if threshold == 0 {
		threshold = DefaultReapThreshold
	}

	return &Reaper{
		store:     store,
		roster:    roster,
		logger:    log,
		interval:  interval,
		threshold: threshold,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic sweep
func (rp *Reaper) Start(ctx context.Context) error {
	// Run immediately on start
	if err := rp.Collect(ctx); err != nil {
		rp.logger.Warn("initial reap failed", logger.Error(err))
	}

	ticker := time.NewTicker(rp.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := rp.Collect(ctx); err != nil {
					rp.logger.Error("reap failed", logger.Error(err))
				}
			case <-rp.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reaper
func (rp *Reaper) Stop() {
	close(rp.stopCh)
}

// Collect removes terminated members older than the threshold
func (rp *Reaper) Collect(ctx context.Context) error {
	rp.logger.Debug("reaping old terminated member records")

	now := time.Now()
	deleted := 0

	for _, m := range rp.roster.Snapshot().Members {
		if m.State != domain.StateTerminated {
			continue
		}
		if m.TerminatedAt.IsZero() {
			continue
		}

		age := now.Sub(m.TerminatedAt)
		if age < rp.threshold {
			continue
		}

		rp.roster.Delete(m.ID)

		// Delete from Redis store (best effort)
		if rp.store != nil {
			if err := rp.store.DeleteMember(ctx, m.ID); err != nil {
				rp.logger.Warn("failed to delete member from redis",
					logger.String("member_id", m.ID),
					logger.Error(err))
			}
		}

		rp.logger.Info("reaped terminated member record",
			logger.String("member_id", m.ID),
			logger.String("terminated_for", age.String()))

		deleted++
	}

	if deleted > 0 {
		rp.logger.Info("reap completed", logger.Int("deleted", deleted))
	}

	return nil
}

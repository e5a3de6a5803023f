package scheduler

import (
	"context"

	"github.com/steward-lb/steward/internal/domain"
	"github.com/steward-lb/steward/internal/logger"
	"github.com/steward-lb/steward/internal/pool"
	redisstore "github.com/steward-lb/steward/internal/store/redis"
)

// RosterSyncer re-seeds the roster from Redis on startup so member
// identity survives restarts.
type RosterSyncer struct {
	store  *redisstore.Store
	roster *pool.Roster
	logger logger.Logger
}

// NewRosterSyncer creates a new roster syncer
func NewRosterSyncer(
	store *redisstore.Store,
	roster *pool.Roster,
	log logger.Logger,
) *RosterSyncer {
	return &RosterSyncer{
		store:  store,
		roster: roster,
		logger: log,
	}
}

// Sync loads member records from Redis and seeds the roster. Non-terminated
// members are demoted to unknown with zeroed counters: their pre-restart
// health history is stale, and traffic only flows again after a fresh run
// of consecutive successful probes. Workers that died with the old process
// never pass a probe and are replaced once the stuck grace period expires.
func (rs *RosterSyncer) Sync(ctx context.Context) error {
	rs.logger.Info("syncing members from redis to roster")

	members, err := rs.store.GetAllMembers(ctx)
	if err != nil {
		return err
	}

	if len(members) == 0 {
		rs.logger.Info("no members found in redis")
		return nil
	}

	for _, m := range members {
		if m.State == domain.StateTerminated {
			continue
		}
		m.State = domain.StateUnknown
		m.ConsecutiveSuccesses = 0
		m.ConsecutiveFailures = 0
	}

	rs.roster.Seed(members)

	// Write the demoted states back so a crash right after boot does not
	// resurrect stale health history.
	if err := rs.store.SaveMembersMany(ctx, members); err != nil {
		rs.logger.Warn("failed to persist demoted members", logger.Error(err))
	}

	rs.logger.Info("synced members from redis",
		logger.Int("count", len(members)))

	return nil
}

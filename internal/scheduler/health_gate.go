package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/steward-lb/steward/internal/domain"
	"github.com/steward-lb/steward/internal/logger"
	"github.com/steward-lb/steward/internal/pool"
	"github.com/steward-lb/steward/internal/probe"
	redisstore "github.com/steward-lb/steward/internal/store/redis"
)

// HealthGate runs one probe loop per active member and applies the
// threshold transitions to the roster. It decides traffic eligibility
// only; it never adds or removes members.
type HealthGate struct {
	roster *pool.Roster
	prober probe.Prober
	policy domain.HealthCheckPolicy
	store  *redisstore.Store // nil when persistence is disabled
	logger logger.Logger
	notify chan<- struct{} // nudges the reconciler on a transition to unhealthy

	mu     sync.Mutex
	loops  map[string]chan struct{} // member ID -> per-loop stop channel
	stopCh chan struct{}
}

// NewHealthGate creates a health gate. notify may be nil.
func NewHealthGate(
	roster *pool.Roster,
	prober probe.Prober,
	policy domain.HealthCheckPolicy,
	store *redisstore.Store,
	log logger.Logger,
	notify chan<- struct{},
) *HealthGate {
	return &HealthGate{
		roster: roster,
		prober: prober,
		policy: policy,
		store:  store,
		logger: log,
		notify: notify,
		loops:  make(map[string]chan struct{}),
		stopCh: make(chan struct{}),
	}
}

// Start launches the supervisor that keeps one probe loop running per
// active member. Probing is independent per member: a slow probe against
// one member never delays the others.
func (hg *HealthGate) Start(ctx context.Context) error {
	hg.Sync(ctx)

	ticker := time.NewTicker(hg.policy.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				hg.Sync(ctx)
			case <-hg.stopCh:
				hg.stopAllLoops()
				return
			case <-ctx.Done():
				hg.stopAllLoops()
				return
			}
		}
	}()

	return nil
}

// Stop stops the supervisor and all member probe loops.
func (hg *HealthGate) Stop() {
	close(hg.stopCh)
}

// Sync reconciles probe loops with the current membership: new members
// get a loop, terminated ones lose theirs. The reconciler calls this
// after membership changes so fresh members are probed without waiting
// a full interval.
func (hg *HealthGate) Sync(ctx context.Context) {
	snapshot := hg.roster.Snapshot()
	active := make(map[string]bool, len(snapshot.Members))
	for _, m := range snapshot.Active() {
		active[m.ID] = true
	}

	hg.mu.Lock()
	defer hg.mu.Unlock()

	for id, stop := range hg.loops {
		if !active[id] {
			close(stop)
			delete(hg.loops, id)
		}
	}

	for id := range active {
		if _, running := hg.loops[id]; running {
			continue
		}
		stop := make(chan struct{})
		hg.loops[id] = stop
		go hg.probeLoop(ctx, id, stop)
	}
}

// probeLoop probes one member on its own timer until stopped.
func (hg *HealthGate) probeLoop(ctx context.Context, id string, stop chan struct{}) {
	// Probe immediately so a fresh member can reach healthy after
	// healthy_threshold intervals, not threshold+1.
	hg.ProbeMember(ctx, id)

	ticker := time.NewTicker(hg.policy.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			hg.ProbeMember(ctx, id)
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ProbeMember issues one probe against one member and applies the outcome.
func (hg *HealthGate) ProbeMember(ctx context.Context, id string) {
	member, ok := hg.roster.Get(id)
	if !ok || !member.Active() {
		return
	}

	res := hg.prober.Probe(ctx, member)
	updated, transition, changed := hg.roster.Observe(id, res.Success, res.Latency, hg.policy)
	if updated == nil {
		// Member left the roster while the probe was in flight.
		return
	}

	if !res.Success && updated.State == domain.StateUnknown &&
		updated.ConsecutiveFailures == hg.policy.UnhealthyThreshold {
		// Never-healthy members don't transition; make the stall visible.
		hg.logger.Warn("member failing before first healthy",
			logger.String("member_id", id),
			logger.String("addr", updated.Addr),
			logger.Int("consecutive_failures", updated.ConsecutiveFailures))
	}

	if !changed {
		return
	}

	hg.logger.Info("health transition",
		logger.String("member_id", id),
		logger.String("addr", updated.Addr),
		logger.String("from", string(transition.From)),
		logger.String("to", string(transition.To)),
		logger.Duration("latency", res.Latency))

	hg.recordTransition(ctx, updated, transition)

	if transition.To == domain.StateUnhealthy && hg.notify != nil {
		select {
		case hg.notify <- struct{}{}:
		default:
			// Reconciler already has a pending nudge.
		}
	}
}

// ProbeAllOnce probes every active member once, sequentially. Used by
// tests and the initial warm-up.
func (hg *HealthGate) ProbeAllOnce(ctx context.Context) {
	for _, m := range hg.roster.Snapshot().Active() {
		hg.ProbeMember(ctx, m.ID)
	}
}

func (hg *HealthGate) recordTransition(ctx context.Context, m *domain.Member, t domain.Transition) {
	if hg.store == nil {
		return
	}

	event := redisstore.HealthEvent{
		MemberID: m.ID,
		Addr:     m.Addr,
		From:     t.From,
		To:       t.To,
		At:       time.Now(),
	}
	if err := hg.store.RecordHealthEvent(ctx, event); err != nil {
		hg.logger.Warn("failed to record health event",
			logger.String("member_id", m.ID),
			logger.Error(err))
	}
	if err := hg.store.SaveMember(ctx, m); err != nil {
		hg.logger.Warn("failed to persist member state",
			logger.String("member_id", m.ID),
			logger.Error(err))
	}
}

func (hg *HealthGate) stopAllLoops() {
	hg.mu.Lock()
	defer hg.mu.Unlock()

	for id, stop := range hg.loops {
		close(stop)
		delete(hg.loops, id)
	}
}
